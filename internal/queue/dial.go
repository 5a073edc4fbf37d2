package queue

import (
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DialTimeout bounds the TCP connect and the AMQP handshake together.
const DialTimeout = 3 * time.Second

// Dial opens a broker connection that gives up after timeout instead of
// hanging on an unreachable or silent host.
func Dial(url string, timeout time.Duration) (*amqp.Connection, error) {
	return amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
}
