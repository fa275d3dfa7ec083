package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/dormdesk/internal/accounts"
	"github.com/MarcoPoloResearchLab/dormdesk/internal/directory"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type publicAccountPayload struct {
	ID           string     `json:"id"`
	Email        *string    `json:"email"`
	CreatedAt    time.Time  `json:"created_at"`
	LastSignInAt *time.Time `json:"last_sign_in_at"`
	BannedUntil  *time.Time `json:"banned_until"`
	ConfirmedAt  *time.Time `json:"confirmed_at"`
}

type listResponsePayload struct {
	Users []publicAccountPayload `json:"users"`
}

// deleteRequestPayload keeps the id list raw so a non-array value can be told
// apart from a body that is not JSON at all. user_ids is the legacy field name.
type deleteRequestPayload struct {
	TargetIDs json.RawMessage `json:"target_ids"`
	UserIDs   json.RawMessage `json:"user_ids"`
}

type deleteResponsePayload struct {
	Success bool     `json:"success"`
	Deleted []string `json:"deleted"`
	Failed  []string `json:"failed"`
}

func (h *httpHandler) handleListUsers(c *gin.Context) {
	if _, ok := accessFromContext(c); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	listed, err := h.directory.List(c.Request.Context(), h.pageSize)
	if err != nil {
		h.requestLogger(c).Error("failed to list accounts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	response := listResponsePayload{Users: make([]publicAccountPayload, 0, len(listed))}
	for _, account := range listed {
		response.Users = append(response.Users, projectAccount(account))
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleDeleteUsers(c *gin.Context) {
	admitted, ok := accessFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var request deleteRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed_body"})
		return
	}
	rawIDs := request.TargetIDs
	if isAbsent(rawIDs) {
		rawIDs = request.UserIDs
	}
	if isAbsent(rawIDs) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_target_ids"})
		return
	}
	var targetIDs []string
	if err := json.Unmarshal(rawIDs, &targetIDs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_target_ids"})
		return
	}

	result, err := h.deleter.DeleteMany(c.Request.Context(), accounts.Request{
		RequestID: requestID(c),
		CallerID:  admitted.CallerID,
		TargetIDs: targetIDs,
	})
	if err != nil {
		switch {
		case errors.Is(err, accounts.ErrNoTargets):
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing_target_ids"})
		case errors.Is(err, accounts.ErrSelfDeletion):
			h.requestLogger(c).Warn("self deletion refused", zap.String("caller_id", admitted.CallerID))
			c.JSON(http.StatusBadRequest, gin.H{"error": "self_deletion_forbidden"})
		case errors.Is(err, accounts.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_target_ids"})
		default:
			h.requestLogger(c).Error("bulk deletion failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, deleteResponsePayload{
		Success: true,
		Deleted: nonNil(result.Deleted),
		Failed:  nonNil(result.Failed),
	})
}

func projectAccount(account directory.Account) publicAccountPayload {
	return publicAccountPayload{
		ID:           account.ID,
		Email:        account.Email,
		CreatedAt:    account.CreatedAt,
		LastSignInAt: account.LastSignInAt,
		BannedUntil:  account.BannedUntil,
		ConfirmedAt:  account.ConfirmedAt,
	}
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
