package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Chromeninja/test-squadron-discord-bot-sub002/models"

	_ "github.com/mattn/go-sqlite3"
)

// ErrHandleConflict 表示该 RSI handle 已被另一个 Discord 账号占用。
// 冲突时不写入任何数据，原有记录保持不变。
var ErrHandleConflict = errors.New("database: handle already owned by a different user")

// VerificationDB 处理验证快照的持久化操作
// 同时保存调度器使用的失败计数和下次重查时间
type VerificationDB struct {
	db *sql.DB
}

// NewVerificationDB 创建新的验证数据库实例
// dbPath: 数据库文件路径
func NewVerificationDB(dbPath string) (*VerificationDB, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}

	vdb := &VerificationDB{db: db}

	// 初始化数据表
	if err := vdb.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化数据表失败: %w", err)
	}

	return vdb, nil
}

// Close 关闭数据库连接
func (vdb *VerificationDB) Close() {
	if vdb.db != nil {
		vdb.db.Close()
	}
}

// initTables 创建必要的数据表
func (vdb *VerificationDB) initTables() error {
	createSQL := `CREATE TABLE IF NOT EXISTS verification (
		user_id TEXT PRIMARY KEY,
		handle TEXT NOT NULL,
		display_moniker TEXT DEFAULT '',
		main_orgs TEXT DEFAULT '[]',
		affiliate_orgs TEXT DEFAULT '[]',
		last_error TEXT DEFAULT '',
		checked_at INTEGER DEFAULT 0,
		fail_count INTEGER DEFAULT 0,
		next_retry_at INTEGER DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_verification_next_retry ON verification(next_retry_at);
	CREATE INDEX IF NOT EXISTS idx_verification_handle ON verification(handle COLLATE NOCASE);`

	if _, err := vdb.db.Exec(createSQL); err != nil {
		return fmt.Errorf("创建验证表失败: %w", err)
	}

	log.Println("验证数据表初始化完成")
	return nil
}

// CheckHandleConflict 检查 handle 是否已被其他用户绑定
// 返回占用者的 user_id；未被占用时返回空字符串
func (vdb *VerificationDB) CheckHandleConflict(handle, userID string) (string, error) {
	var owner string
	query := `SELECT user_id FROM verification WHERE handle = ? COLLATE NOCASE AND user_id != ? LIMIT 1`
	err := vdb.db.QueryRow(query, handle, userID).Scan(&owner)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("查询 handle 占用情况失败: %w", err)
	}
	return owner, nil
}

// StoreSnapshot 整体覆盖写入一个用户的验证快照
// 写入前先检查 handle 冲突；冲突时返回 ErrHandleConflict 且不修改任何数据。
// 失败计数与重试时间由调度器单独维护，不在此处覆盖。
func (vdb *VerificationDB) StoreSnapshot(snap *models.VerificationSnapshot) error {
	owner, err := vdb.CheckHandleConflict(snap.Handle, snap.UserID)
	if err != nil {
		return err
	}
	if owner != "" {
		return fmt.Errorf("handle %q is owned by user %s: %w", snap.Handle, owner, ErrHandleConflict)
	}

	mainOrgs, err := json.Marshal(snap.MainOrgs)
	if err != nil {
		return fmt.Errorf("序列化主舰队列表失败: %w", err)
	}
	affiliateOrgs, err := json.Marshal(snap.AffiliateOrgs)
	if err != nil {
		return fmt.Errorf("序列化附属舰队列表失败: %w", err)
	}

	query := `INSERT INTO verification (user_id, handle, display_moniker, main_orgs, affiliate_orgs, last_error, checked_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(user_id) DO UPDATE SET
				handle = excluded.handle,
				display_moniker = excluded.display_moniker,
				main_orgs = excluded.main_orgs,
				affiliate_orgs = excluded.affiliate_orgs,
				last_error = excluded.last_error,
				checked_at = excluded.checked_at`

	_, err = vdb.db.Exec(query,
		snap.UserID,
		snap.Handle,
		snap.DisplayMoniker,
		string(mainOrgs),
		string(affiliateOrgs),
		snap.Error,
		snap.CheckedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("写入验证快照失败: %w", err)
	}

	return nil
}

// LoadSnapshot 读取一个用户的验证快照
// 状态永远根据存储的舰队列表重新推导，不信任任何已存的状态字段。
// 用户不存在时返回 (nil, nil)。
func (vdb *VerificationDB) LoadSnapshot(userID string) (*models.VerificationSnapshot, error) {
	query := `SELECT handle, display_moniker, main_orgs, affiliate_orgs, last_error, checked_at
			  FROM verification WHERE user_id = ?`

	var (
		handle, moniker, mainRaw, affiliateRaw, lastErr string
		checkedAt                                       int64
	)
	err := vdb.db.QueryRow(query, userID).Scan(&handle, &moniker, &mainRaw, &affiliateRaw, &lastErr, &checkedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取验证快照失败: %w", err)
	}

	snap := &models.VerificationSnapshot{
		UserID:         userID,
		Handle:         handle,
		DisplayMoniker: moniker,
		Error:          lastErr,
		CheckedAt:      time.Unix(checkedAt, 0),
	}
	if err := json.Unmarshal([]byte(mainRaw), &snap.MainOrgs); err != nil {
		log.Printf("用户 %s 的主舰队列表损坏，按空处理: %v", userID, err)
	}
	if err := json.Unmarshal([]byte(affiliateRaw), &snap.AffiliateOrgs); err != nil {
		log.Printf("用户 %s 的附属舰队列表损坏，按空处理: %v", userID, err)
	}
	snap.Derive()

	return snap, nil
}

// DueUser 是一条到期需要重查的用户记录
type DueUser struct {
	UserID string
	Handle string
}

// GetDueUsers 返回下次重查时间已到的用户，按到期时间排序，最多 limit 条
func (vdb *VerificationDB) GetDueUsers(now time.Time, limit int) ([]DueUser, error) {
	query := `SELECT user_id, handle FROM verification
			  WHERE next_retry_at <= ? ORDER BY next_retry_at ASC LIMIT ?`
	rows, err := vdb.db.Query(query, now.Unix(), limit)
	if err != nil {
		return nil, fmt.Errorf("查询到期用户失败: %w", err)
	}
	defer rows.Close()

	var due []DueUser
	for rows.Next() {
		var u DueUser
		if err := rows.Scan(&u.UserID, &u.Handle); err != nil {
			return nil, fmt.Errorf("扫描到期用户失败: %w", err)
		}
		due = append(due, u)
	}
	return due, rows.Err()
}

// GetFailCount 读取用户当前的连续失败次数
func (vdb *VerificationDB) GetFailCount(userID string) (int, error) {
	var count int
	err := vdb.db.QueryRow(`SELECT fail_count FROM verification WHERE user_id = ?`, userID).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("读取失败计数失败: %w", err)
	}
	return count, nil
}

// SetFailCount 更新用户的连续失败次数
func (vdb *VerificationDB) SetFailCount(userID string, count int) error {
	_, err := vdb.db.Exec(`UPDATE verification SET fail_count = ? WHERE user_id = ?`, count, userID)
	if err != nil {
		return fmt.Errorf("更新失败计数失败: %w", err)
	}
	return nil
}

// ScheduleNextCheck 设置用户的下次重查时间
func (vdb *VerificationDB) ScheduleNextCheck(userID string, at time.Time) error {
	_, err := vdb.db.Exec(`UPDATE verification SET next_retry_at = ? WHERE user_id = ?`, at.Unix(), userID)
	if err != nil {
		return fmt.Errorf("设置下次重查时间失败: %w", err)
	}
	return nil
}

// DeleteUser 删除一个用户的验证记录（用于 handle 失效后的清理）
func (vdb *VerificationDB) DeleteUser(userID string) error {
	_, err := vdb.db.Exec(`DELETE FROM verification WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("删除验证记录失败: %w", err)
	}
	return nil
}

// AllUserIDs 返回所有已存储验证记录的用户 ID，按写入顺序
func (vdb *VerificationDB) AllUserIDs() ([]string, error) {
	rows, err := vdb.db.Query(`SELECT user_id FROM verification ORDER BY rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("查询用户列表失败: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("扫描用户 ID 失败: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
