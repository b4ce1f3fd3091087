package extensions

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"textflow/internal/cache"
	"textflow/internal/config"
	"textflow/internal/models"
	"textflow/internal/testutil"
)

// countingChecker counts real availability checks so tests can tell cached
// answers apart from fresh ones.
type countingChecker struct {
	stubPlugin
	result  AvailabilityResult
	err     error
	calls   int
	choices ClientChoiceData
}

func (c *countingChecker) Available(ctx context.Context, org *models.Organization) (AvailabilityResult, error) {
	c.calls++
	return c.result, c.err
}

func (c *countingChecker) GetClientChoiceData(ctx context.Context, org *models.Organization) (ClientChoiceData, error) {
	c.calls++
	return c.choices, c.err
}

func availTestCache(t *testing.T) *cache.Cache {
	t.Helper()
	client, _ := testutil.Redis(t)
	cfg := &config.Config{}
	return cache.New(testutil.NewFakeStore(), client, cfg, zap.NewNop())
}

func TestAvailableWithoutChecker(t *testing.T) {
	r := testRegistry(&config.Config{})
	c := availTestCache(t)

	ok, err := r.Available(context.Background(), c, stubPlugin{name: "csv-upload"}, &models.Organization{ID: uuid.New()})
	if err != nil {
		t.Fatalf("Available() error = %v", err)
	}
	if !ok {
		t.Error("a plugin without an availability check is always available")
	}
}

func TestAvailableCachesOnPluginExpiry(t *testing.T) {
	r := testRegistry(&config.Config{})
	c := availTestCache(t)
	org := &models.Organization{ID: uuid.New()}

	checker := &countingChecker{
		stubPlugin: stubPlugin{name: "gated"},
		result:     AvailabilityResult{Result: true, ExpiresSeconds: 600},
	}

	for i := 0; i < 3; i++ {
		ok, err := r.Available(context.Background(), c, checker, org)
		if err != nil {
			t.Fatalf("Available() error = %v", err)
		}
		if !ok {
			t.Fatal("Available() = false, want true")
		}
	}

	if checker.calls != 1 {
		t.Errorf("checker ran %d times, want 1 (later calls served from cache)", checker.calls)
	}
}

func TestAvailableZeroExpiryNotCached(t *testing.T) {
	r := testRegistry(&config.Config{})
	c := availTestCache(t)
	org := &models.Organization{ID: uuid.New()}

	checker := &countingChecker{
		stubPlugin: stubPlugin{name: "gated"},
		result:     AvailabilityResult{Result: false, ExpiresSeconds: 0},
	}

	for i := 0; i < 2; i++ {
		if _, err := r.Available(context.Background(), c, checker, org); err != nil {
			t.Fatalf("Available() error = %v", err)
		}
	}

	if checker.calls != 2 {
		t.Errorf("checker ran %d times, want 2 (zero expiry means no caching)", checker.calls)
	}
}

func TestAvailableCheckerError(t *testing.T) {
	r := testRegistry(&config.Config{})
	c := availTestCache(t)

	checker := &countingChecker{
		stubPlugin: stubPlugin{name: "gated"},
		err:        errors.New("credentials missing"),
	}

	ok, err := r.Available(context.Background(), c, checker, &models.Organization{ID: uuid.New()})
	if err == nil {
		t.Fatal("expected error from failing checker")
	}
	if ok {
		t.Error("a failing checker must report unavailable")
	}
}

func TestChoiceDataCachesOnPluginExpiry(t *testing.T) {
	r := testRegistry(&config.Config{})
	c := availTestCache(t)
	org := &models.Organization{ID: uuid.New()}

	checker := &countingChecker{
		stubPlugin: stubPlugin{name: "remote"},
		choices:    ClientChoiceData{Data: `["a","b"]`, ExpiresSeconds: 300},
	}

	for i := 0; i < 2; i++ {
		data, err := r.ChoiceData(context.Background(), c, checker, org)
		if err != nil {
			t.Fatalf("ChoiceData() error = %v", err)
		}
		if data.Data != `["a","b"]` {
			t.Errorf("ChoiceData() = %q, want %q", data.Data, `["a","b"]`)
		}
	}

	if checker.calls != 1 {
		t.Errorf("provider ran %d times, want 1", checker.calls)
	}
}

func TestChoiceDataWithoutProvider(t *testing.T) {
	r := testRegistry(&config.Config{})
	c := availTestCache(t)

	data, err := r.ChoiceData(context.Background(), c, stubPlugin{name: "plain"}, &models.Organization{ID: uuid.New()})
	if err != nil {
		t.Fatalf("ChoiceData() error = %v", err)
	}
	if data.Data != "" {
		t.Errorf("ChoiceData() = %q, want empty", data.Data)
	}
}
