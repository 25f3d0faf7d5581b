package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/relayim/socialcore/internal/auth"
	"github.com/relayim/socialcore/internal/service/relgroup"
)

type createGroupReq struct {
	Index *int32 `json:"index"`
	Name  string `json:"name"`
}

// CreateGroup handles POST /v1/relationship-groups
func (s *Server) CreateGroup(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req createGroupReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("invalid create group body")
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	group, err := s.Groups.CreateGroup(r.Context(), userID, req.Index, req.Name, nil, nil)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, group)
}

// ListGroups handles GET /v1/relationship-groups?lastUpdatedDate=
func (s *Server) ListGroups(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	lastUpdatedDate, ok := parseTimeQuery(r, "lastUpdatedDate")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid lastUpdatedDate")
		return
	}

	result, err := s.Groups.QueryGroupsWithVersion(r.Context(), userID, lastUpdatedDate)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type renameGroupReq struct {
	Name string `json:"name"`
}

// RenameGroup handles PUT /v1/relationship-groups/{groupIndex}
func (s *Server) RenameGroup(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	groupIndex, ok := parseIndexParam(r, "groupIndex")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid group index")
		return
	}

	var req renameGroupReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("invalid rename group body")
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := s.Groups.UpdateGroupName(r.Context(), userID, groupIndex, req.Name); err != nil {
		respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteGroup handles DELETE /v1/relationship-groups/{groupIndex}?moveMembersTo=
// Members move to the default group unless moveMembersTo names another one.
func (s *Server) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	groupIndex, ok := parseIndexParam(r, "groupIndex")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid group index")
		return
	}

	target := int32(relgroup.DefaultGroupIndex)
	if raw := r.URL.Query().Get("moveMembersTo"); raw != "" {
		parsed, err := parseInt32(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid moveMembersTo")
			return
		}
		target = parsed
	}

	if err := s.Groups.DeleteGroupAndMoveMembers(r.Context(), userID, groupIndex, target); err != nil {
		respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type upsertGroupMemberReq struct {
	RelatedUserID    int64  `json:"relatedUserId"`
	DeleteGroupIndex *int32 `json:"deleteGroupIndex"`
}

type upsertGroupMemberResp struct {
	GroupIndex *int32 `json:"groupIndex,omitempty"`
}

// UpsertGroupMember handles POST /v1/relationship-groups/{groupIndex}/members
// Adds relatedUserId to the path group, moving it out of deleteGroupIndex
// when one is given. Only established, unblocked relationships may be
// placed into groups.
func (s *Server) UpsertGroupMember(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	groupIndex, ok := parseIndexParam(r, "groupIndex")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid group index")
		return
	}

	var req upsertGroupMemberReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("invalid upsert group member body")
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	related, err := s.Relationships.HasRelationshipAndNotBlocked(r.Context(), userID, req.RelatedUserID)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if !related {
		writeError(w, http.StatusBadRequest, "no relationship with the target user")
		return
	}

	index, err := s.Groups.UpsertGroupMember(r.Context(), userID, req.RelatedUserID, &groupIndex, req.DeleteGroupIndex, nil)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, upsertGroupMemberResp{GroupIndex: index})
}

// RemoveGroupMember handles DELETE /v1/relationship-groups/{groupIndex}/members/{relatedUserId}
// Depending on policy the member either moves to the default group or, when
// this was their last group, loses the relationship.
func (s *Server) RemoveGroupMember(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	groupIndex, ok := parseIndexParam(r, "groupIndex")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid group index")
		return
	}
	relatedUserID, ok := parseIDParam(r, "relatedUserId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid related user id")
		return
	}

	index, err := s.Groups.UpsertGroupMember(r.Context(), userID, relatedUserID, nil, &groupIndex, nil)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, upsertGroupMemberResp{GroupIndex: index})
}

type groupMembersResp struct {
	MemberIDs []int64 `json:"memberIds"`
}

// ListGroupMembers handles GET /v1/relationship-groups/{groupIndex}/members
func (s *Server) ListGroupMembers(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	groupIndex, ok := parseIndexParam(r, "groupIndex")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid group index")
		return
	}

	memberIDs, err := s.Groups.QueryGroupMemberIDs(r.Context(), userID, groupIndex)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groupMembersResp{MemberIDs: memberIDs})
}
