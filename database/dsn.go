package database

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// OpenDialector 根据 DATABASE_URL 选择方言
//
//	postgres://... / postgresql://...  -> PostgreSQL
//	sqlite://path / sqlite:path / file:... -> SQLite
func OpenDialector(databaseURL string) (gorm.Dialector, error) {
	url := strings.TrimSpace(databaseURL)
	if url == "" {
		return nil, fmt.Errorf("database url is empty")
	}

	lower := strings.ToLower(url)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return postgres.Open(url), nil
	case strings.HasPrefix(lower, "sqlite://"):
		return openSQLite(url[len("sqlite://"):])
	case strings.HasPrefix(lower, "sqlite:"):
		return openSQLite(url[len("sqlite:"):])
	case strings.HasPrefix(lower, "file:"):
		return sqlite.Open(url), nil
	default:
		return nil, fmt.Errorf("unsupported database url scheme: %s", MaskURL(url))
	}
}

func openSQLite(path string) (gorm.Dialector, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite database path is empty")
	}
	if path == ":memory:" || strings.Contains(path, "?") {
		return sqlite.Open(path), nil
	}
	// WAL 模式
	return sqlite.Open(path + "?_journal_mode=WAL"), nil
}

// MaskURL 隐藏连接串中的密码
func MaskURL(url string) string {
	schemeEnd := strings.Index(url, "://")
	at := strings.LastIndex(url, "@")
	if schemeEnd < 0 || at < schemeEnd {
		return url
	}
	userInfo := url[schemeEnd+3 : at]
	if colon := strings.Index(userInfo, ":"); colon >= 0 {
		return url[:schemeEnd+3] + userInfo[:colon] + ":***" + url[at:]
	}
	return url
}
