package freebies

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/glowdesk/glowdesk/internal/docstore"
	"github.com/glowdesk/glowdesk/internal/repository"
	"github.com/glowdesk/glowdesk/internal/validation"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	store := docstore.NewMemoryStore()
	return NewService(NewRepository(store), NewLedgerRepository(store), nil)
}

func seedFreebies(t *testing.T, svc *Service) []Freebie {
	t.Helper()
	out := make([]Freebie, 0, 3)
	for _, f := range []Freebie{
		{Name: "Lavender Sachet", AvailableQty: 3},
		{Name: "Travel Pouch", Description: "Canvas pouch", AvailableQty: 1},
		{Name: "Rose Mist Sample", Value: 49, AvailableQty: 0},
	} {
		created, err := svc.Create(context.Background(), f)
		require.NoError(t, err)
		out = append(out, created)
	}
	return out
}

func TestCreateRejectsFractionalAndBadBlend(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Create(context.Background(), Freebie{Name: "Blend", Blend: []string{"p1", ""}, AvailableQty: 1})
	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "blend item 2 must be a product id", verr.Fields["blend"])

	_, err = svc.Create(context.Background(), Freebie{AvailableQty: 1})
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "name is required", verr.Fields["name"])
}

func TestAvailableAndSearch(t *testing.T) {
	svc := newTestService(t)
	seedFreebies(t, svc)
	ctx := context.Background()

	available, err := svc.Find(ctx, ListFreebiesRequest{Available: true})
	require.NoError(t, err)
	require.Len(t, available, 2)

	found, err := svc.Find(ctx, ListFreebiesRequest{Search: "ROSE"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, "Rose Mist Sample", found[0].Name)

	all, err := svc.Find(ctx, ListFreebiesRequest{})
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestRecordSentFloorsAtZero(t *testing.T) {
	svc := newTestService(t)
	seeded := seedFreebies(t, svc)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := svc.RecordSent(ctx, Sent{
			CustomerID:  "c1",
			FreebieID:   seeded[1].ID,
			PurchaseID:  "p1",
			FreebieName: seeded[1].Name,
		})
		require.NoError(t, err)
	}

	current, err := svc.Get(ctx, seeded[1].ID)
	require.NoError(t, err)
	require.Equal(t, 0, current.AvailableQty)

	sent, err := svc.SentToCustomer(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, sent, 2)
	require.False(t, sent[0].SentDate.IsZero())
}

func TestTakeOneMissingFreebie(t *testing.T) {
	svc := newTestService(t)
	_, _, err := svc.TakeOne(context.Background(), "missing")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSetAvailableRestores(t *testing.T) {
	svc := newTestService(t)
	seeded := seedFreebies(t, svc)
	ctx := context.Background()

	before, after, err := svc.TakeOne(ctx, seeded[0].ID)
	require.NoError(t, err)
	require.Equal(t, 3, before)
	require.Equal(t, 2, after)

	require.NoError(t, svc.SetAvailable(ctx, seeded[0].ID, before))
	current, err := svc.Get(ctx, seeded[0].ID)
	require.NoError(t, err)
	require.Equal(t, 3, current.AvailableQty)
}

func TestEligibilityAndLedgerQueries(t *testing.T) {
	svc := newTestService(t)
	seeded := seedFreebies(t, svc)
	ctx := context.Background()

	may := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	june := time.Date(2024, 6, 2, 8, 0, 0, 0, time.UTC)
	_, err := svc.AppendLedger(ctx, Sent{CustomerID: "c1", FreebieID: seeded[0].ID, PurchaseID: "p1", FreebieName: seeded[0].Name, SentDate: may})
	require.NoError(t, err)
	_, err = svc.AppendLedger(ctx, Sent{CustomerID: "c2", FreebieID: seeded[1].ID, PurchaseID: "p2", FreebieName: seeded[1].Name, SentDate: june})
	require.NoError(t, err)

	got, err := svc.HasReceived(ctx, "c1", seeded[0].ID)
	require.NoError(t, err)
	require.True(t, got)
	got, err = svc.HasReceived(ctx, "c1", seeded[1].ID)
	require.NoError(t, err)
	require.False(t, got)

	eligible, err := svc.NotReceivedBy(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	require.Equal(t, seeded[1].ID, eligible[0].ID)

	inMay, err := svc.SentBetween(ctx, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 5, 31, 23, 59, 59, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, inMay, 1)
	require.Equal(t, "c1", inMay[0].CustomerID)

	all, err := svc.ListSent(ctx, ListSentRequest{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "c2", all[0].CustomerID)

	forC2, err := svc.ListSent(ctx, ListSentRequest{CustomerID: "c2"})
	require.NoError(t, err)
	require.Len(t, forC2, 1)

	require.NoError(t, svc.RemoveLedgerEntry(ctx, forC2[0].ID))
	remaining, err := svc.AllSent(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
}
