package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/balance-dashboard/internal/model"
)

type PreferenceRepo struct{ DB *sql.DB }

func NewPreferenceRepo(db *sql.DB) *PreferenceRepo { return &PreferenceRepo{DB: db} }

// Get returns the stored preferences, or the defaults when none exist.
func (r *PreferenceRepo) Get(ctx context.Context, userID uint64) (model.Preferences, error) {
	p := model.Preferences{UserID: userID}
	err := r.DB.QueryRowContext(ctx,
		"SELECT theme,layout,chart_style,sidebar_collapsed,notifications_enabled,updated_at FROM user_preferences WHERE user_id=?",
		userID).Scan(&p.Theme, &p.Layout, &p.ChartStyle, &p.SidebarCollapsed, &p.NotificationsEnabled, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DefaultPreferences(userID), nil
	}
	return p, err
}

// Upsert stores p for p.UserID.
func (r *PreferenceRepo) Upsert(ctx context.Context, p model.Preferences) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO user_preferences (user_id,theme,layout,chart_style,sidebar_collapsed,notifications_enabled) VALUES (?,?,?,?,?,?) "+
			"ON DUPLICATE KEY UPDATE theme=VALUES(theme), layout=VALUES(layout), chart_style=VALUES(chart_style), "+
			"sidebar_collapsed=VALUES(sidebar_collapsed), notifications_enabled=VALUES(notifications_enabled)",
		p.UserID, p.Theme, p.Layout, p.ChartStyle, p.SidebarCollapsed, p.NotificationsEnabled)
	return err
}
