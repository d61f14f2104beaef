package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/hedgeledger/core/internal/apperr"
	"github.com/hedgeledger/core/internal/classify"
	"github.com/hedgeledger/core/internal/store"
)

// handleAnalyticsOverview answers spec §6 GET /api/analytics/overview: pool
// performance across every tracked pool, tolerating a deadline-bounded
// partial result (spec §4.G).
func (s *Server) handleAnalyticsOverview(w http.ResponseWriter, r *http.Request) {
	deadline := time.Now().Add(20 * time.Second)
	result, err := s.analyticsAPI.GetAllPoolAnalytics(r.Context(), deadline)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleAnalyticsPlayers answers spec §6 GET /api/analytics/players: the
// player count, broken down by tier and by state.
func (s *Server) handleAnalyticsPlayers(w http.ResponseWriter, r *http.Request) {
	var players []store.Player
	if err := s.db.Find(&players).Error; err != nil {
		writeDomainError(w, apperr.New(apperr.CategoryInternal, "failed to load players", err))
		return
	}

	byTier := map[string]int{}
	byState := map[string]int{}
	for _, p := range players {
		byTier[p.Tier]++
		byState[p.State]++
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":   len(players),
		"byTier":  byTier,
		"byState": byState,
	})
}

// handleAnalyticsDeposits answers spec §6 GET /api/analytics/deposits: a
// count of deposit requests by lifecycle status.
func (s *Server) handleAnalyticsDeposits(w http.ResponseWriter, r *http.Request) {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := s.db.Model(&store.DepositRequest{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		writeDomainError(w, apperr.New(apperr.CategoryInternal, "failed to load deposit stats", err))
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleQueryBreakdown answers spec §6 GET /api/analytics/query-breakdown,
// listing the query-cost ledger rows for one YYYY-MM period (default: the
// current UTC month).
func (s *Server) handleQueryBreakdown(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = time.Now().UTC().Format("2006-01")
	}
	var costs []store.QueryCost
	if err := s.db.Where("period = ?", period).Find(&costs).Error; err != nil {
		writeDomainError(w, apperr.New(apperr.CategoryInternal, "failed to load query costs", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"period": period, "costs": costs})
}

// handleAdminUsersList answers spec §6 GET /api/admin/users/.
func (s *Server) handleAdminUsersList(w http.ResponseWriter, r *http.Request) {
	var players []store.Player
	if err := s.db.Find(&players).Error; err != nil {
		writeDomainError(w, apperr.New(apperr.CategoryInternal, "failed to load players", err))
		return
	}
	writeJSON(w, http.StatusOK, players)
}

type tierRequest struct {
	Tier string `json:"tier"`
}

// handleAdminUserTier answers spec §6 PATCH /api/admin/users/:id/tier.
func (s *Server) handleAdminUserTier(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id", nil)
		return
	}
	var req tierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Tier == "" {
		writeError(w, http.StatusBadRequest, "tier is required", nil)
		return
	}
	if err := s.db.Model(&store.Player{}).Where("id = ?", id).Update("tier", req.Tier).Error; err != nil {
		writeDomainError(w, apperr.New(apperr.CategoryInternal, "failed to update tier", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "tier": req.Tier})
}

// handleAdminUserDelete answers spec §6 DELETE /api/admin/users/:discordId,
// cascading balance then player (spec.md: "cascade balance then player")
// in one transaction since JewelBalance has no DB-level foreign key
// cascade of its own.
func (s *Server) handleAdminUserDelete(w http.ResponseWriter, r *http.Request) {
	discordID := chi.URLParam(r, "discordId")

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var player store.Player
		if err := tx.Where("discord_id = ?", discordID).First(&player).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if err := tx.Where("player_id = ?", player.ID).Delete(&store.JewelBalance{}).Error; err != nil {
			return err
		}
		return tx.Delete(&player).Error
	})
	if err != nil {
		writeDomainError(w, apperr.New(apperr.CategoryInternal, "failed to delete player", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAdminRefreshSnapshot answers spec §6 POST
// /api/admin/users/:id/refresh-snapshot with 202 and a "snapshot refresh
// scheduled" status. It invalidates no cache and schedules no work.
func (s *Server) handleAdminRefreshSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusAccepted, map[string]interface{}{"status": "snapshot refresh scheduled"})
}

// handleAdminReclassify answers spec §6 POST /api/admin/users/:id/reclassify,
// re-running the pure classification engine over freshly gathered signals
// and persisting the result onto the player row.
func (s *Server) handleAdminReclassify(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id", nil)
		return
	}

	var player store.Player
	if err := s.db.First(&player, id).Error; err != nil {
		writeError(w, http.StatusNotFound, "player not found", nil)
		return
	}

	signals, err := s.gatherSignals(player.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	result := classify.Classify(signals)

	tags, _ := json.Marshal(result.BehaviorTags)
	if err := s.db.Model(&player).Updates(map[string]interface{}{
		"state": string(result.State),
		"flags": string(tags),
	}).Error; err != nil {
		writeDomainError(w, apperr.New(apperr.CategoryInternal, "failed to persist reclassification", err))
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// gatherSignals folds persisted activity into classify.Signals. Grounded on
// the teacher's GetAMMState pattern: read a bundle of raw rows, derive one
// struct, hand it to a pure function.
func (s *Server) gatherSignals(playerID uint) (classify.Signals, error) {
	var signals classify.Signals

	var cluster store.WalletCluster
	if err := s.db.Where("owner_player_id = ?", playerID).First(&cluster).Error; err != nil {
		return signals, nil
	}

	var links []store.WalletLink
	if err := s.db.Where("cluster_key = ? AND is_active = ?", cluster.ClusterKey, true).Find(&links).Error; err != nil {
		return signals, apperr.New(apperr.CategoryInternal, "failed to load wallet links", err)
	}

	for _, link := range links {
		var bridgeIn, bridgeOut float64
		s.db.Model(&store.BridgeEvent{}).Where("wallet = ? AND direction = ?", link.Address, "in").
			Select("coalesce(sum(usd_value),0)").Scan(&bridgeIn)
		s.db.Model(&store.BridgeEvent{}).Where("wallet = ? AND direction = ?", link.Address, "out").
			Select("coalesce(sum(usd_value),0)").Scan(&bridgeOut)
		signals.BridgedInUsd += bridgeIn
		signals.BridgedOutUsd += bridgeOut

		var stakedCount int64
		s.db.Model(&store.StakerPosition{}).Where("wallet = ?", link.Address).Count(&stakedCount)
		signals.HeroesIn += int(stakedCount)
	}

	signals.NetExtractedUsd = signals.BridgedOutUsd - signals.BridgedInUsd
	if signals.NetExtractedUsd < 0 {
		signals.NetExtractedUsd = 0
	}
	return signals, nil
}

// handleUserSummary answers spec §6 GET /api/user/summary/:discordId.
func (s *Server) handleUserSummary(w http.ResponseWriter, r *http.Request) {
	discordID := chi.URLParam(r, "discordId")
	claims := claimsFromContext(r.Context())
	if claims != nil && !claims.IsAdmin && claims.UserID != discordID {
		writeError(w, http.StatusForbidden, "may only view own summary", nil)
		return
	}

	var player store.Player
	if err := s.db.Where("discord_id = ?", discordID).First(&player).Error; err != nil {
		writeError(w, http.StatusNotFound, "player not found", nil)
		return
	}
	var balance store.JewelBalance
	s.db.Where("player_id = ?", player.ID).First(&balance)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"player":  player,
		"balance": balance.Balance,
	})
}

type userSettingsRequest struct {
	Username string `json:"username"`
}

// handleUserSettings answers spec §6 PATCH /api/user/settings/:discordId.
func (s *Server) handleUserSettings(w http.ResponseWriter, r *http.Request) {
	discordID := chi.URLParam(r, "discordId")
	claims := claimsFromContext(r.Context())
	if claims != nil && !claims.IsAdmin && claims.UserID != discordID {
		writeError(w, http.StatusForbidden, "may only edit own settings", nil)
		return
	}

	var req userSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := s.db.Model(&store.Player{}).Where("discord_id = ?", discordID).
		Update("username", req.Username).Error; err != nil {
		writeDomainError(w, apperr.New(apperr.CategoryInternal, "failed to update settings", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"discordId": discordID, "username": req.Username})
}

// handleClearPoolCache answers spec §6 POST /api/debug/clear-pool-cache.
func (s *Server) handleClearPoolCache(w http.ResponseWriter, r *http.Request) {
	count, err := s.poolDirectory.PoolCount(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	for pid := int64(0); pid < count; pid++ {
		s.poolDirectory.Invalidate(pid)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"cleared": count})
}

// handleRefreshPoolCache answers spec §6 POST /api/debug/refresh-pool-cache
// by re-warming every pool's analytics, bounded by the same deadline rule
// GetAllPoolAnalytics applies elsewhere.
func (s *Server) handleRefreshPoolCache(w http.ResponseWriter, r *http.Request) {
	deadline := time.Now().Add(20 * time.Second)
	result, err := s.analyticsAPI.GetAllPoolAnalytics(r.Context(), deadline)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"refreshed": result.Processed, "partial": result.Partial})
}

// handleRestartMonitor answers spec §6 POST /api/debug/restart-monitor
// with 202 and a "restart requested" status. It records nothing and does
// not signal the scheduler; restarting the process is left to the
// OS/container orchestrator.
func (s *Server) handleRestartMonitor(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusAccepted, map[string]interface{}{"status": "restart requested"})
}

// handleSystemHealth answers spec §6 GET /api/debug/system-health: every
// indexer checkpoint's staleness, surfaced the way an operator dashboard
// would want it.
func (s *Server) handleSystemHealth(w http.ResponseWriter, r *http.Request) {
	var checkpoints []store.IndexerCheckpoint
	if err := s.db.Find(&checkpoints).Error; err != nil {
		writeDomainError(w, apperr.New(apperr.CategoryInternal, "failed to load checkpoints", err))
		return
	}

	type checkpointHealth struct {
		Name             string `json:"name"`
		Kind             string `json:"kind"`
		Status           string `json:"status"`
		LastIndexedBlock uint64 `json:"lastIndexedBlock"`
		LastError        string `json:"lastError,omitempty"`
	}
	health := make([]checkpointHealth, 0, len(checkpoints))
	for _, c := range checkpoints {
		health = append(health, checkpointHealth{
			Name:             c.Name,
			Kind:             c.Kind,
			Status:           c.Status,
			LastIndexedBlock: c.LastIndexedBlock,
			LastError:        c.LastError,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"indexers": health})
}
