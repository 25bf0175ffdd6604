package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"AgentTON-Chain/internal/chat"
	apperrors "AgentTON-Chain/internal/errors"
)

const createTableStmt = `
CREATE TABLE IF NOT EXISTS chat_job_archive (
    message_id  VARCHAR(64)  NOT NULL PRIMARY KEY,
    user_id     BIGINT       NOT NULL,
    text        TEXT         NOT NULL,
    status      VARCHAR(16)  NOT NULL,
    reply       TEXT         NOT NULL,
    transcript  JSON         NULL,
    created_at   TIMESTAMP   NOT NULL,
    updated_at   TIMESTAMP   NOT NULL,
    completed_at TIMESTAMP   NULL,
    archived_at  TIMESTAMP   NOT NULL DEFAULT CURRENT_TIMESTAMP,
    KEY idx_user_id (user_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`

// Archive 把终态任务落入 MySQL，供审计与离线分析使用。
type Archive struct {
	db *sql.DB
}

// NewArchive 连接数据库并确保归档表存在。
func NewArchive(dsn string) (*Archive, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInitializationFailure, err, "打开 MySQL 连接失败")
	}

	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, apperrors.Wrap(apperrors.CodeInitializationFailure, err, "MySQL 连接不可用")
	}
	if _, err := db.ExecContext(ctx, createTableStmt); err != nil {
		db.Close()
		return nil, apperrors.Wrap(apperrors.CodeInitializationFailure, err, "创建归档表失败")
	}

	return &Archive{db: db}, nil
}

var _ chat.Archiver = (*Archive)(nil)

// Archive 写入一条终态任务。同一任务重复归档时覆盖旧记录。
func (a *Archive) Archive(ctx context.Context, job *chat.Job) error {
	transcript, err := json.Marshal(job.Results)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageFailure, err, "序列化执行记录失败")
	}

	const stmt = `
REPLACE INTO chat_job_archive
    (message_id, user_id, text, status, reply, transcript, created_at, updated_at, completed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := a.db.ExecContext(ctx, stmt,
		job.ID, job.UserID, job.Text, string(job.Status), job.Reply,
		transcript, job.CreatedAt, job.UpdatedAt, job.CompletedAt,
	); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageFailure, err, "写入归档记录失败")
	}
	return nil
}

// Close 释放数据库连接。
func (a *Archive) Close() error {
	return a.db.Close()
}
