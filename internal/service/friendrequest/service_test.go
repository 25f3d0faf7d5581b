package friendrequest

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relayim/socialcore/internal/config"
	"github.com/relayim/socialcore/internal/db"
	"github.com/relayim/socialcore/internal/idgen"
	"github.com/relayim/socialcore/internal/service/relationship"
	"github.com/relayim/socialcore/internal/service/relgroup"
	"github.com/relayim/socialcore/internal/service/userversion"
	"github.com/relayim/socialcore/internal/status"
)

func getTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration tests")
	}

	pool, err := db.Open(context.Background(), dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	_, err = pool.Exec(context.Background(), `
		DELETE FROM user_friend_request;
		DELETE FROM user_relationship_group_member;
		DELETE FROM user_relationship_group;
		DELETE FROM user_relationship;
		DELETE FROM user_version;
	`)
	if err != nil {
		t.Fatalf("Failed to clean tables: %v", err)
	}
	return pool
}

type testEnv struct {
	pool          *pgxpool.Pool
	cfg           *config.Manager
	requests      *Service
	relationships *relationship.Service
	groups        *relgroup.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	pool := getTestDB(t)
	t.Cleanup(pool.Close)

	cfg := config.DefaultConfig()
	cfg.FriendRequest.ExpireAfterSeconds = 3600
	manager := config.NewManager(cfg)

	versions := userversion.NewService(pool)
	var relationships *relationship.Service
	groups := relgroup.NewService(pool, versions,
		func() relgroup.RelationshipDeleter { return relationships },
		func() bool { return manager.Current().Relationship.DeleteWhenRemovedFromAllGroups },
	)
	relationships = relationship.NewService(pool, groups)
	requests := NewService(pool, manager, idgen.New(), versions, relationships)

	return &testEnv{
		pool:          pool,
		cfg:           manager,
		requests:      requests,
		relationships: relationships,
		groups:        groups,
	}
}

func strp(s string) *string { return &s }

func TestAuthAndCreate(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	env := newTestEnv(t)
	ctx := context.Background()

	request, err := env.requests.AuthAndCreate(ctx, 1, 2, strp("hello"), time.Now())
	if err != nil {
		t.Fatalf("AuthAndCreate failed: %v", err)
	}
	if request.Status != StatusPending || request.Content != "hello" {
		t.Fatalf("unexpected request %+v", request)
	}
	if request.ID == 0 {
		t.Fatal("expected a generated id")
	}

	// The recipient's received stream now has content.
	result, err := env.requests.QueryWithVersion(ctx, 2, false, nil)
	if err != nil {
		t.Fatalf("QueryWithVersion failed: %v", err)
	}
	if len(result.Requests) != 1 || result.Requests[0].ID != request.ID {
		t.Fatalf("unexpected received requests %+v", result.Requests)
	}

	// And the requester's sent stream.
	sent, err := env.requests.QueryWithVersion(ctx, 1, true, nil)
	if err != nil {
		t.Fatalf("sent QueryWithVersion failed: %v", err)
	}
	if len(sent.Requests) != 1 {
		t.Fatalf("unexpected sent requests %+v", sent.Requests)
	}
}

func TestAuthAndCreate_SelfRequest(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	env := newTestEnv(t)

	_, err := env.requests.AuthAndCreate(context.Background(), 1, 1, nil, time.Now())
	if !status.Is(err, status.IllegalArgument) {
		t.Fatalf("expected ILLEGAL_ARGUMENT, got %v", err)
	}
}

func TestAuthAndCreate_NilContentBecomesEmpty(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	env := newTestEnv(t)

	request, err := env.requests.AuthAndCreate(context.Background(), 1, 2, nil, time.Now())
	if err != nil {
		t.Fatalf("AuthAndCreate failed: %v", err)
	}
	if request.Content != "" {
		t.Fatalf("expected empty content, got %q", request.Content)
	}
}

func TestAuthAndCreate_BlockedByRecipient(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.pool.Exec(ctx, `
		INSERT INTO user_relationship (owner_id, related_user_id, blocked, establishment_date)
		VALUES (2, 1, true, now())
	`)
	if err != nil {
		t.Fatal(err)
	}

	_, err = env.requests.AuthAndCreate(ctx, 1, 2, nil, time.Now())
	if !status.Is(err, status.BlockedUserSendFriendRequest) {
		t.Fatalf("expected BLOCKED_USER_TO_SEND_FRIEND_REQUEST, got %v", err)
	}
}

func TestAuthAndCreate_DuplicatePending(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.requests.AuthAndCreate(ctx, 1, 2, nil, time.Now()); err != nil {
		t.Fatal(err)
	}
	_, err := env.requests.AuthAndCreate(ctx, 1, 2, nil, time.Now())
	if !status.Is(err, status.CreateExistingFriendRequest) {
		t.Fatalf("expected CREATE_EXISTING_FRIEND_REQUEST, got %v", err)
	}
}

func TestAuthAndCreate_ResendPolicy(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.requests.AuthAndCreate(ctx, 1, 2, nil, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.requests.AuthAndHandle(ctx, 2, first.ID, ActionDecline, nil); err != nil {
		t.Fatal(err)
	}

	// Default policy: a declined request still prohibits a resend.
	_, err = env.requests.AuthAndCreate(ctx, 1, 2, nil, time.Now())
	if !status.Is(err, status.CreateExistingFriendRequest) {
		t.Fatalf("expected CREATE_EXISTING_FRIEND_REQUEST, got %v", err)
	}

	// Flipping the policy allows it.
	next := config.DefaultConfig()
	next.FriendRequest.ExpireAfterSeconds = 3600
	next.FriendRequest.AllowSendRequestAfterDeclinedOrIgnoredOrExpired = true
	env.cfg.Replace(next)

	if _, err := env.requests.AuthAndCreate(ctx, 1, 2, nil, time.Now()); err != nil {
		t.Fatalf("resend should be allowed under the relaxed policy, got %v", err)
	}
}

func TestAuthAndHandle_Accept(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	env := newTestEnv(t)
	ctx := context.Background()

	request, err := env.requests.AuthAndCreate(ctx, 1, 2, strp("hi"), time.Now())
	if err != nil {
		t.Fatal(err)
	}

	result, err := env.requests.AuthAndHandle(ctx, 2, request.ID, ActionAccept, strp("welcome"))
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if result.Request.Status != StatusAccepted {
		t.Fatalf("expected ACCEPTED, got %s", result.Request.Status)
	}
	if result.RequesterGroupIndex == nil || *result.RequesterGroupIndex != relgroup.DefaultGroupIndex {
		t.Fatalf("unexpected requester group index %v", result.RequesterGroupIndex)
	}
	if result.RecipientGroupIndex == nil || *result.RecipientGroupIndex != relgroup.DefaultGroupIndex {
		t.Fatalf("unexpected recipient group index %v", result.RecipientGroupIndex)
	}

	// Both directed relationships exist and are unblocked.
	for _, pair := range [][2]int64{{1, 2}, {2, 1}} {
		ok, err := env.relationships.HasRelationshipAndNotBlocked(ctx, pair[0], pair[1])
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Fatalf("expected unblocked relationship %v", pair)
		}
	}

	// Each user sits in the other's default group.
	for _, pair := range [][2]int64{{1, 2}, {2, 1}} {
		members, err := env.groups.QueryGroupMemberIDs(ctx, pair[0], relgroup.DefaultGroupIndex)
		if err != nil {
			t.Fatal(err)
		}
		if len(members) != 1 || members[0] != pair[1] {
			t.Fatalf("owner %d: unexpected default group members %v", pair[0], members)
		}
	}
}

func TestAuthAndHandle_NotRecipient(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	env := newTestEnv(t)
	ctx := context.Background()

	request, err := env.requests.AuthAndCreate(ctx, 1, 2, nil, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	// The requester cannot respond to their own request, and an unrelated
	// user gets the identical code so existence never leaks.
	for _, caller := range []int64{1, 3} {
		_, err := env.requests.AuthAndHandle(ctx, caller, request.ID, ActionAccept, nil)
		if !status.Is(err, status.NotRecipientToUpdateFriendRequest) {
			t.Fatalf("caller %d: expected NOT_RECIPIENT_TO_UPDATE_FRIEND_REQUEST, got %v", caller, err)
		}
	}

	// A missing request returns the same code too.
	_, err = env.requests.AuthAndHandle(ctx, 2, 999999, ActionAccept, nil)
	if !status.Is(err, status.NotRecipientToUpdateFriendRequest) {
		t.Fatalf("expected NOT_RECIPIENT_TO_UPDATE_FRIEND_REQUEST for missing request, got %v", err)
	}
}

func TestAuthAndHandle_NonPending(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	env := newTestEnv(t)
	ctx := context.Background()

	request, err := env.requests.AuthAndCreate(ctx, 1, 2, nil, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.requests.AuthAndHandle(ctx, 2, request.ID, ActionIgnore, nil); err != nil {
		t.Fatal(err)
	}

	_, err = env.requests.AuthAndHandle(ctx, 2, request.ID, ActionAccept, nil)
	if !status.Is(err, status.UpdateNonPendingFriendRequest) {
		t.Fatalf("expected UPDATE_NON_PENDING_FRIEND_REQUEST, got %v", err)
	}
	var se *status.Error
	if !errors.As(err, &se) || !strings.Contains(se.Detail, string(StatusIgnored)) {
		t.Fatalf("expected the actual status in the detail, got %v", err)
	}
}

func TestAuthAndHandle_ExpiredCountsAsNonPending(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	env := newTestEnv(t)
	ctx := context.Background()

	old := time.Now().Add(-2 * time.Hour)
	pending := StatusPending
	request, err := env.requests.Create(ctx, CreateParams{
		RequesterID:  1,
		RecipientID:  2,
		Status:       &pending,
		CreationDate: &old,
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = env.requests.AuthAndHandle(ctx, 2, request.ID, ActionAccept, nil)
	if !status.Is(err, status.UpdateNonPendingFriendRequest) {
		t.Fatalf("expected UPDATE_NON_PENDING_FRIEND_REQUEST for an expired request, got %v", err)
	}
	var se *status.Error
	if !errors.As(err, &se) || !strings.Contains(se.Detail, string(StatusExpired)) {
		t.Fatalf("expected EXPIRED in the detail, got %v", err)
	}
}

func TestAuthAndRecall(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	env := newTestEnv(t)
	ctx := context.Background()

	request, err := env.requests.AuthAndCreate(ctx, 1, 2, nil, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	recalled, err := env.requests.AuthAndRecall(ctx, 1, request.ID)
	if err != nil {
		t.Fatalf("recall failed: %v", err)
	}
	if recalled.Status != StatusCanceled {
		t.Fatalf("expected CANCELED, got %s", recalled.Status)
	}

	// A second recall sees a non-pending request.
	_, err = env.requests.AuthAndRecall(ctx, 1, request.ID)
	if !status.Is(err, status.RecallNonPendingFriendRequest) {
		t.Fatalf("expected RECALL_NON_PENDING_FRIEND_REQUEST, got %v", err)
	}
}

func TestAuthAndRecall_NotSender(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	env := newTestEnv(t)
	ctx := context.Background()

	request, err := env.requests.AuthAndCreate(ctx, 1, 2, nil, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	// The recipient, a stranger and a missing id all get the same code.
	for _, caller := range []int64{2, 3} {
		_, err := env.requests.AuthAndRecall(ctx, caller, request.ID)
		if !status.Is(err, status.NotSenderToRecallFriendRequest) {
			t.Fatalf("caller %d: expected NOT_SENDER_TO_RECALL_FRIEND_REQUEST, got %v", caller, err)
		}
	}
	_, err = env.requests.AuthAndRecall(ctx, 1, 999999)
	if !status.Is(err, status.NotSenderToRecallFriendRequest) {
		t.Fatalf("expected NOT_SENDER_TO_RECALL_FRIEND_REQUEST for missing request, got %v", err)
	}
}

func TestAuthAndRecall_Disabled(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	env := newTestEnv(t)

	next := config.DefaultConfig()
	next.FriendRequest.AllowRecallPendingFriendRequestBySender = false
	env.cfg.Replace(next)

	_, err := env.requests.AuthAndRecall(context.Background(), 1, 1)
	if !status.Is(err, status.RecallingFriendRequestDisabled) {
		t.Fatalf("expected RECALLING_FRIEND_REQUEST_IS_DISABLED, got %v", err)
	}
}

func TestQueryWithVersion_ProjectsExpiry(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	env := newTestEnv(t)
	ctx := context.Background()

	old := time.Now().Add(-2 * time.Hour)
	pending := StatusPending
	request, err := env.requests.Create(ctx, CreateParams{
		RequesterID:  1,
		RecipientID:  2,
		Status:       &pending,
		CreationDate: &old,
	})
	if err != nil {
		t.Fatal(err)
	}

	result, err := env.requests.QueryWithVersion(ctx, 2, false, nil)
	if err != nil {
		t.Fatalf("QueryWithVersion failed: %v", err)
	}
	if len(result.Requests) != 1 {
		t.Fatalf("unexpected requests %+v", result.Requests)
	}
	got := result.Requests[0]
	if got.Status != StatusExpired {
		t.Fatalf("expected projected EXPIRED, got %s", got.Status)
	}
	if got.ResponseDate == nil {
		t.Fatal("expected a projected response date")
	}
	want := old.Add(time.Hour)
	if diff := got.ResponseDate.Sub(want); diff < -time.Second || diff > time.Second {
		t.Fatalf("projected response date %v, want about %v", got.ResponseDate, want)
	}

	// The stored row is untouched.
	var stored string
	if err := env.pool.QueryRow(ctx,
		`SELECT status FROM user_friend_request WHERE id = $1`, request.ID).Scan(&stored); err != nil {
		t.Fatal(err)
	}
	if stored != string(StatusPending) {
		t.Fatalf("projection must not modify the store, got %s", stored)
	}
}

func TestQueryWithVersion_UpToDateAndEmpty(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	env := newTestEnv(t)
	ctx := context.Background()

	// No version row yet.
	_, err := env.requests.QueryWithVersion(ctx, 1, false, nil)
	if !status.Is(err, status.AlreadyUpToDate) {
		t.Fatalf("expected ALREADY_UP_TO_DATE, got %v", err)
	}

	request, err := env.requests.AuthAndCreate(ctx, 1, 2, nil, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	result, err := env.requests.QueryWithVersion(ctx, 2, false, nil)
	if err != nil {
		t.Fatal(err)
	}

	// A current client short-circuits.
	_, err = env.requests.QueryWithVersion(ctx, 2, false, &result.LastUpdatedDate)
	if !status.Is(err, status.AlreadyUpToDate) {
		t.Fatalf("expected ALREADY_UP_TO_DATE for a current client, got %v", err)
	}

	// A version bump with no remaining rows yields NO_CONTENT.
	if _, err := env.requests.DeleteByIDs(ctx, []int64{request.ID}); err != nil {
		t.Fatal(err)
	}
	_, err = env.requests.QueryWithVersion(ctx, 2, false, nil)
	if !status.Is(err, status.NoContent) {
		t.Fatalf("expected NO_CONTENT, got %v", err)
	}
}

func TestCreate_Validation(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.requests.Create(ctx, CreateParams{RequesterID: 1, RecipientID: 1})
	if !status.Is(err, status.IllegalArgument) {
		t.Fatalf("self request: expected ILLEGAL_ARGUMENT, got %v", err)
	}

	long := strings.Repeat("x", 201)
	_, err = env.requests.Create(ctx, CreateParams{RequesterID: 1, RecipientID: 2, Content: long})
	if !status.Is(err, status.IllegalArgument) {
		t.Fatalf("long content: expected ILLEGAL_ARGUMENT, got %v", err)
	}

	future := time.Now().Add(time.Hour)
	_, err = env.requests.Create(ctx, CreateParams{RequesterID: 1, RecipientID: 2, ResponseDate: &future})
	if !status.Is(err, status.IllegalArgument) {
		t.Fatalf("future response date: expected ILLEGAL_ARGUMENT, got %v", err)
	}
}

func TestCreate_ClampsFutureCreationDate(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	env := newTestEnv(t)

	future := time.Now().Add(time.Hour)
	request, err := env.requests.Create(context.Background(), CreateParams{
		RequesterID:  1,
		RecipientID:  2,
		CreationDate: &future,
	})
	if err != nil {
		t.Fatal(err)
	}
	if request.CreationDate.After(time.Now().Add(time.Minute)) {
		t.Fatalf("creation date must be clamped to now, got %v", request.CreationDate)
	}
}

func TestUpdatePendingStatus(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	env := newTestEnv(t)
	ctx := context.Background()

	request, err := env.requests.AuthAndCreate(ctx, 1, 2, nil, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	// PENDING is not a valid transition target.
	_, err = env.requests.UpdatePendingStatus(ctx, request.ID, StatusPending, nil)
	if !status.Is(err, status.IllegalArgument) {
		t.Fatalf("expected ILLEGAL_ARGUMENT, got %v", err)
	}

	modified, err := env.requests.UpdatePendingStatus(ctx, request.ID, StatusCanceled, nil)
	if err != nil {
		t.Fatal(err)
	}
	if modified != 1 {
		t.Fatalf("expected 1 modified row, got %d", modified)
	}

	// The row is no longer pending, so the conditional write misses.
	modified, err = env.requests.UpdatePendingStatus(ctx, request.ID, StatusDeclined, nil)
	if err != nil {
		t.Fatal(err)
	}
	if modified != 0 {
		t.Fatalf("expected 0 modified rows, got %d", modified)
	}
}

func TestAdminFilterAndBatch(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	env := newTestEnv(t)
	ctx := context.Background()

	a, err := env.requests.AuthAndCreate(ctx, 1, 2, nil, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	b, err := env.requests.AuthAndCreate(ctx, 3, 2, nil, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	byRecipient, err := env.requests.QueryByFilter(ctx, Filter{RecipientIDs: []int64{2}})
	if err != nil {
		t.Fatal(err)
	}
	if len(byRecipient) != 2 {
		t.Fatalf("expected 2 requests for recipient 2, got %d", len(byRecipient))
	}

	count, err := env.requests.CountByFilter(ctx, Filter{RequesterIDs: []int64{1}})
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected 1 request from requester 1, got %d", count)
	}

	// A batch update with nothing to set is an acknowledged no-op.
	updated, err := env.requests.UpdateRequests(ctx, []int64{a.ID, b.ID}, UpdateParams{})
	if err != nil {
		t.Fatal(err)
	}
	if updated != 0 {
		t.Fatalf("empty update must modify nothing, got %d", updated)
	}

	declined := StatusDeclined
	updated, err = env.requests.UpdateRequests(ctx, []int64{a.ID, b.ID}, UpdateParams{Status: &declined})
	if err != nil {
		t.Fatal(err)
	}
	if updated != 2 {
		t.Fatalf("expected 2 updated rows, got %d", updated)
	}

	deleted, err := env.requests.DeleteByIDs(ctx, []int64{a.ID})
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted row, got %d", deleted)
	}
}

func TestRemoveAllExpired(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	env := newTestEnv(t)
	ctx := context.Background()

	old := time.Now().Add(-2 * time.Hour)
	pending := StatusPending
	if _, err := env.requests.Create(ctx, CreateParams{
		RequesterID: 1, RecipientID: 2, Status: &pending, CreationDate: &old,
	}); err != nil {
		t.Fatal(err)
	}
	fresh, err := env.requests.AuthAndCreate(ctx, 3, 2, nil, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	deleted, err := env.requests.RemoveAllExpired(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted expired request, got %d", deleted)
	}

	remaining, err := env.requests.FindByID(ctx, fresh.ID)
	if err != nil {
		t.Fatal(err)
	}
	if remaining == nil || remaining.Status != StatusPending {
		t.Fatalf("fresh request must survive cleanup, got %+v", remaining)
	}
}
