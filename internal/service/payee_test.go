package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corebanking/digibank/internal/domain"
)

func TestAddPayee(t *testing.T) {
	f := newFixture(t)
	carol := f.addUser(t, "carol@example.com")

	p, err := f.payees.Add(context.Background(), f.alice.ID, "  CAROL@Example.COM ", "Carol")
	require.NoError(t, err)
	require.Equal(t, carol.ID, p.PayeeUserID)
	require.Equal(t, "carol@example.com", p.PayeeEmail)
	require.Equal(t, "Carol", p.Label)
	require.Equal(t, domain.PayeeActive, p.Status)

	audits := f.store.Audits()
	require.NotEmpty(t, audits)
	require.Equal(t, "PAYEE_ADD", audits[len(audits)-1].Action)
}

func TestAddPayee_UnknownEmail(t *testing.T) {
	f := newFixture(t)

	_, err := f.payees.Add(context.Background(), f.alice.ID, "nobody@example.com", "")
	require.True(t, domain.IsValidation(err), "expected validation error, got %v", err)
}

func TestAddPayee_Self(t *testing.T) {
	f := newFixture(t)

	_, err := f.payees.Add(context.Background(), f.alice.ID, f.alice.Email, "")
	require.True(t, domain.IsValidation(err), "expected validation error, got %v", err)
}

func TestAddPayee_DuplicateActive(t *testing.T) {
	f := newFixture(t)

	_, err := f.payees.Add(context.Background(), f.alice.ID, f.bob.Email, "")
	require.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestAddPayee_ReenablesDisabled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.payees.Disable(ctx, f.alice.ID, f.aliceToBob.ID)
	require.NoError(t, err)

	p, err := f.payees.Add(ctx, f.alice.ID, f.bob.Email, "Bobby")
	require.NoError(t, err)
	require.Equal(t, f.aliceToBob.ID, p.ID)
	require.Equal(t, domain.PayeeActive, p.Status)
	require.Equal(t, "Bobby", p.Label)

	audits := f.store.Audits()
	require.NotEmpty(t, audits)
	require.Equal(t, "PAYEE_ENABLE", audits[len(audits)-1].Action)
}

func TestListPayees_ExcludesDisabled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	list, err := f.payees.List(ctx, f.alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, f.aliceToBob.ID, list[0].ID)

	_, err = f.payees.Disable(ctx, f.alice.ID, f.aliceToBob.ID)
	require.NoError(t, err)

	list, err = f.payees.List(ctx, f.alice.ID)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestDisablePayee_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.payees.Disable(ctx, f.alice.ID, f.aliceToBob.ID)
	require.NoError(t, err)
	require.Equal(t, domain.PayeeDisabled, first.Status)
	before := len(f.store.Audits())

	second, err := f.payees.Disable(ctx, f.alice.ID, f.aliceToBob.ID)
	require.NoError(t, err)
	require.Equal(t, domain.PayeeDisabled, second.Status)
	require.Len(t, f.store.Audits(), before, "repeat disable must not audit again")
}

func TestDisablePayee_Foreign(t *testing.T) {
	f := newFixture(t)

	_, err := f.payees.Disable(context.Background(), f.alice.ID, f.bobToAlice.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResolveDestination(t *testing.T) {
	f := newFixture(t)

	dest, err := f.payees.ResolveDestination(context.Background(), f.alice.ID, f.aliceToBob.ID, "CAD")
	require.NoError(t, err)
	require.Equal(t, f.aliceToBob.ID, dest.PayeeID)
	require.Equal(t, f.bobAcct.ID, dest.AccountID)
	require.Equal(t, f.bob.ID, dest.OwnerUserID)
}

func TestResolveDestination_NotFoundCases(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Unknown payee id.
	_, err := f.payees.ResolveDestination(ctx, f.alice.ID, 9999, "CAD")
	require.ErrorIs(t, err, domain.ErrNotFound)

	// Someone else's payee.
	_, err = f.payees.ResolveDestination(ctx, f.alice.ID, f.bobToAlice.ID, "CAD")
	require.ErrorIs(t, err, domain.ErrNotFound)

	// No destination account in the requested currency.
	_, err = f.payees.ResolveDestination(ctx, f.alice.ID, f.aliceToBob.ID, "USD")
	require.ErrorIs(t, err, domain.ErrNotFound)

	// Disabled payee.
	_, err = f.payees.Disable(ctx, f.alice.ID, f.aliceToBob.ID)
	require.NoError(t, err)
	_, err = f.payees.ResolveDestination(ctx, f.alice.ID, f.aliceToBob.ID, "CAD")
	require.ErrorIs(t, err, domain.ErrNotFound)
}
