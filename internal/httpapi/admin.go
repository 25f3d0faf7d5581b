package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/relayim/socialcore/internal/service/friendrequest"
	"github.com/relayim/socialcore/internal/service/relgroup"
)

// Query param list helpers. Lists are comma-separated; empty params are
// treated as absent filters.

func queryInt64s(r *http.Request, name string) ([]int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func queryInt32s(r *http.Request, name string) ([]int32, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]int32, 0, len(parts))
	for _, p := range parts {
		n, err := parseInt32(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func queryStrings(r *http.Request, name string) []string {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func queryInt(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// requestFilterFromQuery builds the admin friend-request filter from query
// params. Returns false on a malformed param.
func requestFilterFromQuery(r *http.Request) (friendrequest.Filter, bool) {
	var f friendrequest.Filter
	var err error
	if f.IDs, err = queryInt64s(r, "ids"); err != nil {
		return f, false
	}
	if f.RequesterIDs, err = queryInt64s(r, "requesterIds"); err != nil {
		return f, false
	}
	if f.RecipientIDs, err = queryInt64s(r, "recipientIds"); err != nil {
		return f, false
	}
	for _, raw := range queryStrings(r, "statuses") {
		statusValue := friendrequest.Status(raw)
		if !statusValue.Valid() {
			return f, false
		}
		f.Statuses = append(f.Statuses, statusValue)
	}
	var ok bool
	var t *time.Time
	if t, ok = parseTimeQuery(r, "creationDateStart"); !ok {
		return f, false
	}
	f.CreationDateStart = t
	if t, ok = parseTimeQuery(r, "creationDateEnd"); !ok {
		return f, false
	}
	f.CreationDateEnd = t
	if t, ok = parseTimeQuery(r, "responseDateStart"); !ok {
		return f, false
	}
	f.ResponseDateStart = t
	if t, ok = parseTimeQuery(r, "responseDateEnd"); !ok {
		return f, false
	}
	f.ResponseDateEnd = t
	f.Page = queryInt(r, "page")
	f.Size = queryInt(r, "size")
	return f, true
}

type adminCreateFriendRequestReq struct {
	ID           *int64                `json:"id"`
	RequesterID  int64                 `json:"requesterId"`
	RecipientID  int64                 `json:"recipientId"`
	Content      string                `json:"content"`
	Status       *friendrequest.Status `json:"status"`
	CreationDate *time.Time            `json:"creationDate"`
	ResponseDate *time.Time            `json:"responseDate"`
	Reason       *string               `json:"reason"`
}

// AdminCreateFriendRequest handles POST /admin/friend-requests
func (s *Server) AdminCreateFriendRequest(w http.ResponseWriter, r *http.Request) {
	var req adminCreateFriendRequestReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("invalid admin create friend request body")
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	request, err := s.FriendRequests.Create(r.Context(), friendrequest.CreateParams{
		ID:           req.ID,
		RequesterID:  req.RequesterID,
		RecipientID:  req.RecipientID,
		Content:      req.Content,
		Status:       req.Status,
		CreationDate: req.CreationDate,
		ResponseDate: req.ResponseDate,
		Reason:       req.Reason,
	})
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, request)
}

// AdminListFriendRequests handles GET /admin/friend-requests
func (s *Server) AdminListFriendRequests(w http.ResponseWriter, r *http.Request) {
	filter, ok := requestFilterFromQuery(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid filter")
		return
	}
	requests, err := s.FriendRequests.QueryByFilter(r.Context(), filter)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, requests)
}

type countResp struct {
	Count int64 `json:"count"`
}

// AdminCountFriendRequests handles GET /admin/friend-requests/count
func (s *Server) AdminCountFriendRequests(w http.ResponseWriter, r *http.Request) {
	filter, ok := requestFilterFromQuery(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid filter")
		return
	}
	count, err := s.FriendRequests.CountByFilter(r.Context(), filter)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, countResp{Count: count})
}

type adminUpdateFriendRequestsReq struct {
	IDs          []int64               `json:"ids"`
	RequesterID  *int64                `json:"requesterId"`
	RecipientID  *int64                `json:"recipientId"`
	Content      *string               `json:"content"`
	Status       *friendrequest.Status `json:"status"`
	Reason       *string               `json:"reason"`
	CreationDate *time.Time            `json:"creationDate"`
	ResponseDate *time.Time            `json:"responseDate"`
}

type updatedResp struct {
	Updated int64 `json:"updated"`
}

// AdminUpdateFriendRequests handles PUT /admin/friend-requests
func (s *Server) AdminUpdateFriendRequests(w http.ResponseWriter, r *http.Request) {
	var req adminUpdateFriendRequestsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("invalid admin update friend requests body")
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	updated, err := s.FriendRequests.UpdateRequests(r.Context(), req.IDs, friendrequest.UpdateParams{
		RequesterID:  req.RequesterID,
		RecipientID:  req.RecipientID,
		Content:      req.Content,
		Status:       req.Status,
		Reason:       req.Reason,
		CreationDate: req.CreationDate,
		ResponseDate: req.ResponseDate,
	})
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updatedResp{Updated: updated})
}

type deletedResp struct {
	Deleted int64 `json:"deleted"`
}

// AdminDeleteFriendRequests handles DELETE /admin/friend-requests?ids=
func (s *Server) AdminDeleteFriendRequests(w http.ResponseWriter, r *http.Request) {
	ids, err := queryInt64s(r, "ids")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid ids")
		return
	}
	deleted, err := s.FriendRequests.DeleteByIDs(r.Context(), ids)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deletedResp{Deleted: deleted})
}

// groupFilterFromQuery builds the admin group filter from query params.
func groupFilterFromQuery(r *http.Request) (relgroup.GroupFilter, bool) {
	var f relgroup.GroupFilter
	var err error
	if f.OwnerIDs, err = queryInt64s(r, "ownerIds"); err != nil {
		return f, false
	}
	if f.Indexes, err = queryInt32s(r, "indexes"); err != nil {
		return f, false
	}
	f.Names = queryStrings(r, "names")
	var ok bool
	var t *time.Time
	if t, ok = parseTimeQuery(r, "creationDateStart"); !ok {
		return f, false
	}
	f.CreationDateStart = t
	if t, ok = parseTimeQuery(r, "creationDateEnd"); !ok {
		return f, false
	}
	f.CreationDateEnd = t
	f.Page = queryInt(r, "page")
	f.Size = queryInt(r, "size")
	return f, true
}

// AdminListGroups handles GET /admin/relationship-groups
func (s *Server) AdminListGroups(w http.ResponseWriter, r *http.Request) {
	filter, ok := groupFilterFromQuery(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid filter")
		return
	}
	groups, err := s.Groups.QueryGroupsByFilter(r.Context(), filter)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

// AdminCountGroups handles GET /admin/relationship-groups/count
func (s *Server) AdminCountGroups(w http.ResponseWriter, r *http.Request) {
	filter, ok := groupFilterFromQuery(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid filter")
		return
	}
	count, err := s.Groups.CountGroupsByFilter(r.Context(), filter)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, countResp{Count: count})
}

// AdminCountGroupMembers handles GET /admin/relationship-groups/members/count
func (s *Server) AdminCountGroupMembers(w http.ResponseWriter, r *http.Request) {
	ownerIDs, err := queryInt64s(r, "ownerIds")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid ownerIds")
		return
	}
	indexes, err := queryInt32s(r, "indexes")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid indexes")
		return
	}
	count, err := s.Groups.CountMembers(r.Context(), ownerIDs, indexes)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, countResp{Count: count})
}

type adminUpdateGroupsReq struct {
	Keys         []relgroup.GroupKey `json:"keys"`
	Name         *string             `json:"name"`
	CreationDate *time.Time          `json:"creationDate"`
}

// AdminUpdateGroups handles PUT /admin/relationship-groups
func (s *Server) AdminUpdateGroups(w http.ResponseWriter, r *http.Request) {
	var req adminUpdateGroupsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("invalid admin update groups body")
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := s.Groups.UpdateGroups(r.Context(), req.Keys, req.Name, req.CreationDate); err != nil {
		respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
