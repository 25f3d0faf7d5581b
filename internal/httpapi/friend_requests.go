package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/relayim/socialcore/internal/auth"
	"github.com/relayim/socialcore/internal/service/friendrequest"
)

type createFriendRequestReq struct {
	RecipientID int64   `json:"recipientId"`
	Content     *string `json:"content"`
}

// CreateFriendRequest handles POST /v1/friend-requests
func (s *Server) CreateFriendRequest(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req createFriendRequestReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("invalid create friend request body")
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	request, err := s.FriendRequests.AuthAndCreate(r.Context(), userID, req.RecipientID, req.Content, time.Now())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, request)
}

// RecallFriendRequest handles DELETE /v1/friend-requests/{requestId}
func (s *Server) RecallFriendRequest(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	requestID, ok := parseIDParam(r, "requestId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid request id")
		return
	}

	request, err := s.FriendRequests.AuthAndRecall(r.Context(), userID, requestID)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, request)
}

type handleFriendRequestReq struct {
	Action friendrequest.Action `json:"action"`
	Reason *string              `json:"reason"`
}

// HandleFriendRequest handles PUT /v1/friend-requests/{requestId}
func (s *Server) HandleFriendRequest(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	requestID, ok := parseIDParam(r, "requestId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid request id")
		return
	}

	var req handleFriendRequestReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("invalid handle friend request body")
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	result, err := s.FriendRequests.AuthAndHandle(r.Context(), userID, requestID, req.Action, req.Reason)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListFriendRequests handles GET /v1/friend-requests?sent=&lastUpdatedDate=
func (s *Server) ListFriendRequests(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	sent := r.URL.Query().Get("sent") == "true"
	lastUpdatedDate, ok := parseTimeQuery(r, "lastUpdatedDate")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid lastUpdatedDate")
		return
	}

	result, err := s.FriendRequests.QueryWithVersion(r.Context(), userID, sent, lastUpdatedDate)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
