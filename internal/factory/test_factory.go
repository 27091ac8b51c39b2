package factory

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/turnrelay/internal/dependencies/mocks"
	"github.com/mcoot/turnrelay/internal/services/auth"
	"github.com/mcoot/turnrelay/internal/storage/memory"
	"github.com/mcoot/turnrelay/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
}

// NewTestApp creates an App configured for testing with mocked dependencies
// and the cheapest bcrypt cost
func NewTestApp() *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	app := newWithDependencies(store, mockClock, mockRandom, auth.Config{BcryptCost: bcrypt.MinCost}, testutil.NopLogger())

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
	}
}
