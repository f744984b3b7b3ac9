package gatekeeper

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"banking-service/internal/models"
	"banking-service/internal/repository"
)

type fakeUserReader struct {
	byID    map[uuid.UUID]*models.User
	byEmail map[string]*models.User
}

func (f *fakeUserReader) GetUserByID(_ context.Context, userID uuid.UUID) (*models.User, error) {
	if u, ok := f.byID[userID]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserReader) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

type fakeAccountReader struct {
	accounts map[string]*models.Account
}

func (f *fakeAccountReader) GetAccount(_ context.Context, accountNumber string) (*models.Account, error) {
	if a, ok := f.accounts[accountNumber]; ok {
		return a, nil
	}
	return nil, repository.ErrNotFound
}

func newTestAuthorizer() (*Authorizer, *models.User, *models.User) {
	alice := &models.User{UserID: uuid.New(), Email: "alice@example.com", FullName: "Alice", IsActive: true}
	bob := &models.User{UserID: uuid.New(), Email: "bob@example.com", FullName: "Bob", IsActive: true}

	users := &fakeUserReader{
		byID:    map[uuid.UUID]*models.User{alice.UserID: alice, bob.UserID: bob},
		byEmail: map[string]*models.User{alice.Email: alice, bob.Email: bob},
	}
	accounts := &fakeAccountReader{
		accounts: map[string]*models.Account{
			"01234567": {AccountNumber: "01234567", OwnerID: bob.UserID, Currency: "USD", Status: models.AccountStatusActive},
		},
	}
	return NewAuthorizer(users, accounts), alice, bob
}

func TestAuthorizeUser(t *testing.T) {
	a, alice, bob := newTestAuthorizer()
	ctx := context.Background()

	d, err := a.Authorize(ctx, alice.Email, UserResource(alice.UserID))
	if err != nil || !d.Allowed {
		t.Fatalf("owner should access own user record: decision=%+v err=%v", d, err)
	}

	d, err = a.Authorize(ctx, alice.Email, UserResource(bob.UserID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Allowed || d.Reason != ReasonNotOwner {
		t.Fatalf("cross-user access should be denied as not-owner, got %+v", d)
	}
}

func TestAuthorizeAccountOwnership(t *testing.T) {
	a, alice, bob := newTestAuthorizer()
	ctx := context.Background()

	d, err := a.Authorize(ctx, bob.Email, AccountResource("01234567"))
	if err != nil || !d.Allowed {
		t.Fatalf("bob owns the account: decision=%+v err=%v", d, err)
	}

	d, err = a.Authorize(ctx, alice.Email, AccountResource("01234567"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Allowed || d.Reason != ReasonNotOwner {
		t.Fatalf("alice does not own bob's account, got %+v", d)
	}
}

func TestAuthorizeTransactionFollowsAccount(t *testing.T) {
	a, alice, bob := newTestAuthorizer()
	ctx := context.Background()
	txID := uuid.New()

	d, err := a.Authorize(ctx, bob.Email, TransactionResource("01234567", txID))
	if err != nil || !d.Allowed {
		t.Fatalf("account owner should reach its transactions: decision=%+v err=%v", d, err)
	}

	d, err = a.Authorize(ctx, alice.Email, TransactionResource("01234567", txID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Allowed {
		t.Fatal("non-owner should not reach another account's transactions")
	}
}

func TestAuthorizeMissingResourceIsNotFound(t *testing.T) {
	a, alice, bob := newTestAuthorizer()
	ctx := context.Background()

	// Missing resources surface as not-found to every caller, including
	// would-be owners.
	for _, identity := range []string{alice.Email, bob.Email} {
		_, err := a.Authorize(ctx, identity, AccountResource("99999999"))
		if !errors.Is(err, repository.ErrNotFound) {
			t.Fatalf("missing account for %s: err = %v, want ErrNotFound", identity, err)
		}
	}

	_, err := a.Authorize(ctx, alice.Email, UserResource(uuid.New()))
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("missing user: err = %v, want ErrNotFound", err)
	}
}

func TestAuthorizeAnonymousDeniedBeforeLookup(t *testing.T) {
	a, _, _ := newTestAuthorizer()

	d, err := a.Authorize(context.Background(), "", AccountResource("01234567"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Allowed || d.Reason != ReasonUnauthenticated {
		t.Fatalf("anonymous caller should be denied as unauthenticated, got %+v", d)
	}

	// Even a missing resource stays hidden from anonymous callers.
	d, err = a.Authorize(context.Background(), "", AccountResource("99999999"))
	if err != nil || d.Allowed {
		t.Fatalf("anonymous caller on missing resource: decision=%+v err=%v", d, err)
	}
}

func TestAuthorizeIdentityWithoutUserRecord(t *testing.T) {
	a, _, _ := newTestAuthorizer()

	d, err := a.Authorize(context.Background(), "stranger@example.com", AccountResource("01234567"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Allowed || d.Reason != ReasonNotOwner {
		t.Fatalf("verified identity without a user record owns nothing, got %+v", d)
	}
}
