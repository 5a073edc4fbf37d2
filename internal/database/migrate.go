package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order on every start; each statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            CHAR(36)     NOT NULL PRIMARY KEY,
		email         VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		created_at    DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY users_email_unique (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS profiles (
		id         CHAR(36)     NOT NULL PRIMARY KEY,
		email      VARCHAR(255) NOT NULL,
		updated_at DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT profiles_user_fk FOREIGN KEY (id) REFERENCES users (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	// user_id is the primary key: one role per user
	`CREATE TABLE IF NOT EXISTS user_roles (
		user_id    CHAR(36)               NOT NULL PRIMARY KEY,
		role       ENUM('owner','client') NOT NULL,
		created_at DATETIME               NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY user_roles_role_idx (role),
		CONSTRAINT user_roles_user_fk FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         CHAR(36)  NOT NULL PRIMARY KEY,
		user_id    CHAR(36)  NOT NULL,
		token_hash CHAR(64)  NOT NULL,
		expires_at DATETIME  NOT NULL,
		revoked_at DATETIME  NULL,
		created_at DATETIME  NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY refresh_tokens_hash_unique (token_hash),
		KEY refresh_tokens_user_idx (user_id),
		CONSTRAINT refresh_tokens_user_fk FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS client_reports (
		id          CHAR(36)     NOT NULL PRIMARY KEY,
		title       VARCHAR(255) NOT NULL,
		description TEXT         NULL,
		file_path   VARCHAR(512) NULL,
		uploaded_at DATETIME(3)  NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
		client_id   CHAR(36)     NOT NULL,
		user_id     CHAR(36)     NOT NULL,
		KEY client_reports_client_idx (client_id, uploaded_at),
		CONSTRAINT client_reports_client_fk FOREIGN KEY (client_id) REFERENCES users (id),
		CONSTRAINT client_reports_user_fk FOREIGN KEY (user_id) REFERENCES users (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS client_metrics (
		id                             CHAR(36) NOT NULL PRIMARY KEY,
		report_id                      CHAR(36) NOT NULL,
		electricity_usage              DOUBLE   NOT NULL,
		water_usage                    DOUBLE   NOT NULL,
		electricity_savings_percentage DOUBLE   NOT NULL,
		water_savings_percentage       DOUBLE   NOT NULL,
		measurement_date               DATE     NOT NULL,
		created_at                     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY client_metrics_report_idx (report_id, measurement_date),
		CONSTRAINT client_metrics_report_fk FOREIGN KEY (report_id) REFERENCES client_reports (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS audit_requests (
		id                CHAR(36)     NOT NULL PRIMARY KEY,
		full_name         VARCHAR(255) NOT NULL,
		email             VARCHAR(255) NOT NULL,
		audit_type        VARCHAR(32)  NOT NULL,
		electricity_usage VARCHAR(64)  NULL,
		water_usage       VARCHAR(64)  NULL,
		message           TEXT         NULL,
		file_path         VARCHAR(512) NULL,
		crm_synced        BOOLEAN      NOT NULL DEFAULT FALSE,
		created_at        DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS subscription_inquiries (
		id              CHAR(36)     NOT NULL PRIMARY KEY,
		full_name       VARCHAR(255) NOT NULL,
		company_name    VARCHAR(255) NOT NULL,
		email           VARCHAR(255) NOT NULL,
		location        VARCHAR(255) NOT NULL,
		inquiry_type    VARCHAR(32)  NOT NULL,
		additional_info TEXT         NULL,
		crm_synced      BOOLEAN      NOT NULL DEFAULT FALSE,
		created_at      DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS contact_messages (
		id         CHAR(36)     NOT NULL PRIMARY KEY,
		name       VARCHAR(255) NOT NULL,
		email      VARCHAR(255) NOT NULL,
		message    TEXT         NOT NULL,
		crm_synced BOOLEAN      NOT NULL DEFAULT FALSE,
		created_at DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	// client_roster is the one query the owner dashboard uses to list
	// selectable clients; no multi-step lookup happens in the app.
	`CREATE OR REPLACE VIEW client_roster AS
		SELECT p.id AS id, p.email AS email
		FROM user_roles r
		JOIN profiles p ON p.id = r.user_id
		WHERE r.role = 'client'`,
}

// Migrate applies the schema.  It is safe to run on every boot.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration %d: %w", i, err)
		}
	}
	return nil
}
