package server

import (
	"testing"

	"github.com/kcenon/ftscore/internal/ftserrors"
)

func TestAdmitConnectionEnforcesMax(t *testing.T) {
	m := NewManager(NewSessionStore(), 2)

	if err := m.AdmitConnection(); err != nil {
		t.Fatalf("AdmitConnection 1: %v", err)
	}
	if err := m.AdmitConnection(); err != nil {
		t.Fatalf("AdmitConnection 2: %v", err)
	}
	if err := m.AdmitConnection(); ftserrors.KindOf(err) != ftserrors.KindConnectionFailed {
		t.Errorf("expected ConnectionLimitReached, got %v", err)
	}

	m.ReleaseConnection()
	if err := m.AdmitConnection(); err != nil {
		t.Errorf("AdmitConnection after release should succeed: %v", err)
	}
}

func TestEvaluateDefaultsToAllow(t *testing.T) {
	m := NewManager(NewSessionStore(), 4)
	d := m.Evaluate(DirectionUpload, "file.bin", 100)
	if !d.Allow {
		t.Error("with no policy installed, Evaluate should allow")
	}
}

func TestEvaluateUsesInstalledPolicy(t *testing.T) {
	m := NewManager(NewSessionStore(), 4)
	m.SetPolicy(func(dir Direction, filename string, fileSize int64) PolicyDecision {
		if filename == "blocked.exe" {
			return PolicyDecision{Allow: false, Reason: "extension not permitted"}
		}
		return PolicyDecision{Allow: true}
	})

	if d := m.Evaluate(DirectionUpload, "blocked.exe", 10); d.Allow {
		t.Error("policy should have denied blocked.exe")
	}
	if d := m.Evaluate(DirectionUpload, "ok.bin", 10); !d.Allow {
		t.Error("policy should have allowed ok.bin")
	}
}
