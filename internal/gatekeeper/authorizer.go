package gatekeeper

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"banking-service/internal/models"
	"banking-service/internal/repository"
)

// ResourceKind enumerates the resource types the authorizer understands.
type ResourceKind string

const (
	ResourceUser        ResourceKind = "user"
	ResourceAccount     ResourceKind = "account"
	ResourceTransaction ResourceKind = "transaction"
)

// ResourceRef addresses one resource: a user ID, an account number, or an
// account-number/transaction-ID pair.
type ResourceRef struct {
	Kind          ResourceKind
	UserID        uuid.UUID
	AccountNumber string
	TransactionID uuid.UUID
}

func UserResource(userID uuid.UUID) ResourceRef {
	return ResourceRef{Kind: ResourceUser, UserID: userID}
}

func AccountResource(accountNumber string) ResourceRef {
	return ResourceRef{Kind: ResourceAccount, AccountNumber: accountNumber}
}

func TransactionResource(accountNumber string, transactionID uuid.UUID) ResourceRef {
	return ResourceRef{Kind: ResourceTransaction, AccountNumber: accountNumber, TransactionID: transactionID}
}

// Target returns the resource identifier for audit records.
func (r ResourceRef) Target() string {
	switch r.Kind {
	case ResourceUser:
		return r.UserID.String()
	case ResourceTransaction:
		return fmt.Sprintf("%s/%s", r.AccountNumber, r.TransactionID)
	default:
		return r.AccountNumber
	}
}

// DenialReason says why an authorization decision denied the caller.
type DenialReason string

const (
	ReasonUnauthenticated DenialReason = "UNAUTHENTICATED"
	ReasonNotOwner        DenialReason = "NOT_OWNER"
)

// Decision is an explicit authorization outcome; denial is a value, not an
// error or a panic. Lookup failures and missing resources travel on the
// error path, with repository.ErrNotFound kept distinct.
type Decision struct {
	Allowed bool
	Reason  DenialReason
}

var allowed = Decision{Allowed: true}

func denied(reason DenialReason) Decision {
	return Decision{Reason: reason}
}

// UserReader is the slice of user persistence the authorizer needs.
type UserReader interface {
	GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// AccountReader resolves an account's stored owner reference.
type AccountReader interface {
	GetAccount(ctx context.Context, accountNumber string) (*models.Account, error)
}

// Authorizer decides whether a resolved identity owns an addressed
// resource. Ownership rules:
//   - user: the caller's identity equals the user record's email, exactly
//   - account: the account's owner ID equals the caller's user ID
//   - transaction: transitive through the owning account
type Authorizer struct {
	users    UserReader
	accounts AccountReader
	resolve  singleflight.Group
}

func NewAuthorizer(users UserReader, accounts AccountReader) *Authorizer {
	return &Authorizer{users: users, accounts: accounts}
}

// Authorize evaluates ownership of ref by identity. An empty identity is
// denied before the resource is even resolved: that is an authentication
// gap, not an authorization one.
func (a *Authorizer) Authorize(ctx context.Context, identity string, ref ResourceRef) (Decision, error) {
	if identity == "" {
		return denied(ReasonUnauthenticated), nil
	}

	switch ref.Kind {
	case ResourceUser:
		return a.authorizeUser(ctx, identity, ref.UserID)
	case ResourceAccount, ResourceTransaction:
		return a.authorizeAccount(ctx, identity, ref.AccountNumber)
	default:
		return denied(ReasonNotOwner), fmt.Errorf("unknown resource kind %q", ref.Kind)
	}
}

func (a *Authorizer) authorizeUser(ctx context.Context, identity string, userID uuid.UUID) (Decision, error) {
	user, err := a.users.GetUserByID(ctx, userID)
	if err != nil {
		return Decision{}, err
	}
	if user.Email == identity {
		return allowed, nil
	}
	return denied(ReasonNotOwner), nil
}

func (a *Authorizer) authorizeAccount(ctx context.Context, identity, accountNumber string) (Decision, error) {
	// Resolve the account first so a missing account reports not-found
	// to every caller, owner or not.
	account, err := a.accounts.GetAccount(ctx, accountNumber)
	if err != nil {
		return Decision{}, err
	}

	caller, err := a.resolveCaller(ctx, identity)
	if err != nil {
		return Decision{}, err
	}
	if caller == nil {
		// Identity is verified but has no user record here; it cannot
		// own anything.
		return denied(ReasonNotOwner), nil
	}

	if account.OwnerID == caller.UserID {
		return allowed, nil
	}
	return denied(ReasonNotOwner), nil
}

// resolveCaller maps the caller's identity to its user record, collapsing
// concurrent lookups for the same identity into one repository call.
func (a *Authorizer) resolveCaller(ctx context.Context, identity string) (*models.User, error) {
	v, err, _ := a.resolve.Do(identity, func() (interface{}, error) {
		user, err := a.users.GetUserByEmail(ctx, identity)
		if errors.Is(err, repository.ErrNotFound) {
			return (*models.User)(nil), nil
		}
		return user, err
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.User), nil
}
