package filter

import "testing"

func TestPrimitives(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		class  string
		want   bool
	}{
		{"all matches anything", All(), "MyApp::User", true},
		{"none matches nothing", None(), "MyApp::User", false},
		{"name exact match", Name("MyApp::User"), "MyApp::User", true},
		{"name mismatch", Name("MyApp::User"), "MyApp::Order", false},
		{"names matches member", Names("A", "B", "C"), "B", true},
		{"names rejects non-member", Names("A", "B"), "C", false},
		{"prefix matches namespace", Prefix("MyApp::"), "MyApp::User", true},
		{"prefix rejects other namespace", Prefix("MyApp::"), "Other::User", false},
		{"suffix matches", Suffix("Job"), "SyncJob", true},
		{"suffix rejects", Suffix("Job"), "SyncWorker", false},
		{"contains matches", Contains("::Internal::"), "App::Internal::Cache", true},
		{"contains rejects", Contains("::Internal::"), "App::Cache", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Match(tt.class); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.class, got, tt.want)
			}
		})
	}
}

func TestPattern(t *testing.T) {
	f, err := Pattern(`^MyApp::(User|Order)$`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.Match("MyApp::User") {
		t.Error("expected pattern to match MyApp::User")
	}
	if f.Match("MyApp::Session") {
		t.Error("expected pattern to reject MyApp::Session")
	}

	if _, err := Pattern(`[unclosed`); err == nil {
		t.Error("expected error for invalid pattern")
	}
}

func TestCombinators(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		class  string
		want   bool
	}{
		{"and all match", And(Prefix("MyApp::"), Suffix("User")), "MyApp::User", true},
		{"and one fails", And(Prefix("MyApp::"), Suffix("User")), "MyApp::Order", false},
		{"and empty matches", And(), "anything", true},
		{"or one matches", Or(Name("A"), Name("B")), "B", true},
		{"or none match", Or(Name("A"), Name("B")), "C", false},
		{"or empty rejects", Or(), "anything", false},
		{"not inverts match", Not(Name("A")), "A", false},
		{"not inverts mismatch", Not(Name("A")), "B", true},
		{"nested", And(Prefix("App::"), Not(Contains("Test"))), "App::UserTest", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Match(tt.class); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.class, got, tt.want)
			}
		})
	}
}

func TestFunc(t *testing.T) {
	long := Func(func(class string) bool { return len(class) > 10 })
	if !long.Match("MyApp::UserRecord") {
		t.Error("expected long name to match")
	}
	if long.Match("User") {
		t.Error("expected short name to be rejected")
	}
}
