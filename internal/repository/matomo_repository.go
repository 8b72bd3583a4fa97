package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/iliyamo/balance-dashboard/internal/model"
)

// MatomoRepo reads the Matomo analytics store. Visits live in log_visit,
// action definitions in log_action and each action occurrence in
// log_link_visit_action.
type MatomoRepo struct {
	DB     *sqlx.DB
	Prefix string
}

func NewMatomoRepo(db *sqlx.DB, prefix string) *MatomoRepo {
	return &MatomoRepo{DB: db, Prefix: prefix}
}

func (r *MatomoRepo) t(name string) string { return r.Prefix + name }

// histogramColumns whitelists the log_visit columns VisitHistogram may group by.
var histogramColumns = map[string]bool{
	"visit_total_time":    true,
	"visit_total_actions": true,
}

// VisitHistogram counts visits per distinct value of column.
func (r *MatomoRepo) VisitHistogram(ctx context.Context, column string) ([]model.HistogramBin, error) {
	if !histogramColumns[column] {
		return nil, fmt.Errorf("histogram column %q not allowed", column)
	}
	var out []model.HistogramBin
	err := r.DB.SelectContext(ctx, &out,
		"SELECT "+column+" AS value, COUNT(*) AS count FROM "+r.t("log_visit")+" GROUP BY "+column+" ORDER BY "+column)
	return out, err
}

// AverageVisitTime returns the mean visit_total_time in seconds.
func (r *MatomoRepo) AverageVisitTime(ctx context.Context) (float64, error) {
	var avg null.Float64
	if err := r.DB.GetContext(ctx, &avg, "SELECT AVG(visit_total_time) FROM "+r.t("log_visit")); err != nil {
		return 0, err
	}
	return avg.Float64, nil
}

// ActionIDsMatching returns the ids of actions whose name contains any of
// the keywords, ignoring case.
func (r *MatomoRepo) ActionIDsMatching(ctx context.Context, keywords []string) ([]uint64, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	conds := make([]string, len(keywords))
	args := make([]any, len(keywords))
	for i, k := range keywords {
		conds[i] = "LOWER(name) LIKE ?"
		args[i] = "%" + escapeLike(strings.ToLower(k)) + "%"
	}
	var out []uint64
	err := r.DB.SelectContext(ctx, &out,
		"SELECT idaction FROM "+r.t("log_action")+" WHERE "+strings.Join(conds, " OR ")+" ORDER BY idaction", args...)
	return out, err
}

// TrailsThrough loads, in one query, every step of every visit that hit
// one of actionIDs by URL. Steps are ordered by visit, then time. Names
// come from the URL action.
func (r *MatomoRepo) TrailsThrough(ctx context.Context, actionIDs []uint64) ([]model.VisitStep, error) {
	if len(actionIDs) == 0 {
		return nil, nil
	}
	q, args, err := sqlx.In(
		"SELECT l.idlink_va, l.idvisit, l.idaction_url, l.idaction_name, l.idaction_url AS action_id, l.server_time, a.name AS action_name "+
			"FROM "+r.t("log_link_visit_action")+" l "+
			"JOIN (SELECT DISTINCT idvisit FROM "+r.t("log_link_visit_action")+" WHERE idaction_url IN (?)) hit ON hit.idvisit = l.idvisit "+
			"LEFT JOIN "+r.t("log_action")+" a ON a.idaction = l.idaction_url "+
			"ORDER BY l.idvisit, l.server_time, l.idlink_va",
		actionIDs)
	if err != nil {
		return nil, err
	}
	var out []model.VisitStep
	err = r.DB.SelectContext(ctx, &out, r.DB.Rebind(q), args...)
	return out, err
}

// NamedTrails loads every step that carries a page name, across all
// visits, ordered by visit then time. Names come from the name action.
func (r *MatomoRepo) NamedTrails(ctx context.Context) ([]model.VisitStep, error) {
	var out []model.VisitStep
	err := r.DB.SelectContext(ctx, &out,
		"SELECT l.idlink_va, l.idvisit, l.idaction_url, l.idaction_name, l.idaction_name AS action_id, l.server_time, a.name AS action_name "+
			"FROM "+r.t("log_link_visit_action")+" l "+
			"LEFT JOIN "+r.t("log_action")+" a ON a.idaction = l.idaction_name "+
			"WHERE l.idaction_name IS NOT NULL "+
			"ORDER BY l.idvisit, l.server_time, l.idlink_va")
	return out, err
}

// ActionTimes returns the server time of every occurrence of actionIDs by URL.
func (r *MatomoRepo) ActionTimes(ctx context.Context, actionIDs []uint64) ([]time.Time, error) {
	if len(actionIDs) == 0 {
		return nil, nil
	}
	q, args, err := sqlx.In(
		"SELECT server_time FROM "+r.t("log_link_visit_action")+" WHERE idaction_url IN (?)", actionIDs)
	if err != nil {
		return nil, err
	}
	var out []time.Time
	err = r.DB.SelectContext(ctx, &out, r.DB.Rebind(q), args...)
	return out, err
}

// PopularByViews ranks page names by occurrences since the given time.
func (r *MatomoRepo) PopularByViews(ctx context.Context, since time.Time, limit int) ([]model.PageStat, error) {
	var out []model.PageStat
	err := r.DB.SelectContext(ctx, &out,
		"SELECT a.name, COUNT(l.idlink_va) AS value FROM "+r.t("log_link_visit_action")+" l "+
			"JOIN "+r.t("log_action")+" a ON a.idaction = l.idaction_name "+
			"WHERE l.server_time >= ? AND l.idaction_name IS NOT NULL "+
			"GROUP BY l.idaction_name, a.name ORDER BY value DESC LIMIT ?",
		since, limit)
	return out, err
}

// PopularByTime ranks page names by summed time_spent_ref_action.
func (r *MatomoRepo) PopularByTime(ctx context.Context, since time.Time, limit int) ([]model.PageStat, error) {
	var out []model.PageStat
	err := r.DB.SelectContext(ctx, &out,
		"SELECT a.name, SUM(l.time_spent_ref_action) AS value FROM "+r.t("log_link_visit_action")+" l "+
			"JOIN "+r.t("log_action")+" a ON a.idaction = l.idaction_name "+
			"WHERE l.server_time >= ? AND l.idaction_name IS NOT NULL AND l.time_spent_ref_action > 0 "+
			"GROUP BY l.idaction_name, a.name ORDER BY value DESC LIMIT ?",
		since, limit)
	return out, err
}

// VisitCountsByDay counts visits per (first action day, visitor) in [from, to).
func (r *MatomoRepo) VisitCountsByDay(ctx context.Context, from, to time.Time) ([]model.VisitorDay, error) {
	var out []model.VisitorDay
	err := r.DB.SelectContext(ctx, &out,
		"SELECT DATE(visit_first_action_time) AS day, HEX(idvisitor) AS visitor, COUNT(*) AS visits FROM "+r.t("log_visit")+
			" WHERE visit_first_action_time >= ? AND visit_first_action_time < ?"+
			" GROUP BY day, visitor ORDER BY day",
		from, to)
	return out, err
}

// VisitTimesBetween returns the first action time of each visit in [from, to).
func (r *MatomoRepo) VisitTimesBetween(ctx context.Context, from, to time.Time) ([]time.Time, error) {
	var out []time.Time
	err := r.DB.SelectContext(ctx, &out,
		"SELECT visit_first_action_time FROM "+r.t("log_visit")+" WHERE visit_first_action_time >= ? AND visit_first_action_time < ?",
		from, to)
	return out, err
}

// VisitorsForUser returns the hex visitor ids of visits whose user_id equals value.
func (r *MatomoRepo) VisitorsForUser(ctx context.Context, value string) ([]string, error) {
	var out []string
	err := r.DB.SelectContext(ctx, &out,
		"SELECT DISTINCT HEX(idvisitor) FROM "+r.t("log_visit")+" WHERE user_id=?", value)
	return out, err
}

// SampleVisitors returns the distinct visitors behind the first n visits.
func (r *MatomoRepo) SampleVisitors(ctx context.Context, n int) ([]string, error) {
	var rows []string
	err := r.DB.SelectContext(ctx, &rows,
		"SELECT HEX(idvisitor) FROM "+r.t("log_visit")+" ORDER BY idvisit LIMIT ?", n)
	if err != nil {
		return nil, err
	}
	return dedupe(rows), nil
}

// StepsForVisitors joins visits, their steps and the step actions for a set
// of visitors in one query. The action is the URL action, or the name
// action when the step has no URL.
func (r *MatomoRepo) StepsForVisitors(ctx context.Context, visitors []string) ([]model.VisitStep, error) {
	if len(visitors) == 0 {
		return nil, nil
	}
	q, args, err := sqlx.In(
		"SELECT l.idlink_va, l.idvisit, l.idaction_url, l.idaction_name, "+
			"COALESCE(NULLIF(l.idaction_url, 0), l.idaction_name) AS action_id, l.server_time, a.name AS action_name "+
			"FROM "+r.t("log_visit")+" v "+
			"JOIN "+r.t("log_link_visit_action")+" l ON l.idvisit = v.idvisit "+
			"LEFT JOIN "+r.t("log_action")+" a ON a.idaction = COALESCE(NULLIF(l.idaction_url, 0), l.idaction_name) "+
			"WHERE HEX(v.idvisitor) IN (?) "+
			"ORDER BY l.idvisit, l.server_time, l.idlink_va",
		visitors)
	if err != nil {
		return nil, err
	}
	var out []model.VisitStep
	err = r.DB.SelectContext(ctx, &out, r.DB.Rebind(q), args...)
	return out, err
}

// dedupe drops repeated ids, keeping first occurrences.
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
