package sdk

import (
	"errors"
	"testing"

	"github.com/beacon-project/sdk/dispatch"
)

type testCase struct {
	name      string
	namespace string
	wantErr   error
	wantNs    string
}

func TestNew(t *testing.T) {
	testCases := []testCase{
		{
			name:      "Valid Config",
			namespace: "valid",
			wantErr:   nil,
			wantNs:    "valid",
		},
		{
			name:      "Empty Namespace",
			namespace: "",
			wantErr:   nil,
			wantNs:    DefaultNamespace,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			queue := dispatch.New(dispatch.Config{})
			defer queue.Shutdown()

			s, err := New(Config{Namespace: tc.namespace, Queue: queue})
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected error %v, got %v", tc.wantErr, err)
			}
			if err != nil {
				return
			}

			t.Run("Check Namespace", func(t *testing.T) {
				if s.Config().Namespace != tc.wantNs {
					t.Errorf("expected namespace %q, got %q", tc.wantNs, s.Config().Namespace)
				}
			})
		})
	}
}

func TestInitializationGate(t *testing.T) {
	queue := dispatch.New(dispatch.Config{})
	defer queue.Shutdown()

	s, err := New(Config{Namespace: "gate", Queue: queue})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if !Initialized() {
		t.Fatal("expected Initialized to report true after New")
	}

	s.Shutdown()

	if Initialized() {
		t.Fatal("expected Initialized to report false after Shutdown")
	}
}

func TestNewWiresDefaultQueueLogger(t *testing.T) {
	s, err := New(Config{})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer s.Shutdown()

	if dispatch.Default().Logger() == nil {
		t.Fatal("expected New to install a panic reporter on the default queue")
	}
}

func TestNewLeavesCustomQueueLoggerAlone(t *testing.T) {
	queue := dispatch.New(dispatch.Config{})
	defer queue.Shutdown()

	s, err := New(Config{Queue: queue})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer s.Shutdown()

	if queue.Logger() != nil {
		t.Fatal("expected New to leave a caller-supplied queue untouched")
	}
}

func TestShutdownDrainsQueue(t *testing.T) {
	queue := dispatch.New(dispatch.Config{})
	defer queue.Shutdown()

	s, err := New(Config{Queue: queue})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ran := 0
	for i := 0; i < 25; i++ {
		queue.Launch(func() { ran++ })
	}

	s.Shutdown()

	// ran is only written by the queue worker; Shutdown's drain is the
	// barrier that makes reading it here safe.
	if ran != 25 {
		t.Fatalf("expected 25 tasks drained by Shutdown, got %d", ran)
	}
}
