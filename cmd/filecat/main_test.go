package main

import (
	"strings"
	"testing"
	"time"

	"filecat/internal/config"
	"filecat/internal/filecat"
)

func TestParseMoveItems(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    []filecat.MoveItem
		wantErr bool
	}{
		{
			name: "single item",
			args: []string{"12:Invoices"},
			want: []filecat.MoveItem{{FileID: 12, Category: "Invoices"}},
		},
		{
			name: "category with colon",
			args: []string{"3:Work:2024"},
			want: []filecat.MoveItem{{FileID: 3, Category: "Work:2024"}},
		},
		{
			name: "several items",
			args: []string{"1:A", "2:B"},
			want: []filecat.MoveItem{{FileID: 1, Category: "A"}, {FileID: 2, Category: "B"}},
		},
		{name: "missing separator", args: []string{"12"}, wantErr: true},
		{name: "empty category", args: []string{"12:"}, wantErr: true},
		{name: "non numeric id", args: []string{"abc:Photos"}, wantErr: true},
		{name: "zero id", args: []string{"0:Photos"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseMoveItems(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseMoveItems() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseMoveItems() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("item %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		in      string
		want    filecat.FileFilter
		wantErr bool
	}{
		{in: "", want: filecat.FilterAll},
		{in: "all", want: filecat.FilterAll},
		{in: "categorized", want: filecat.FilterCategorized},
		{in: "uncategorized", want: filecat.FilterToCategorize},
		{in: "moved", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseFilter(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseFilter(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseFilter(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestHistoryLine(t *testing.T) {
	started := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)
	finished := started.Add(1500 * time.Millisecond)
	j := &filecat.BatchJob{
		ID:         "0f8c2a3e-1111-2222-3333-444455556666",
		Kind:       filecat.JobRefresh,
		Status:     filecat.StatusSucceeded,
		CreatedAt:  started,
		StartedAt:  &started,
		FinishedAt: &finished,
		Total:      4,
		Processed:  4,
	}

	got := historyLine(j)
	for _, want := range []string{"0f8c2a3e", "Refresh", "Succeeded", "4/4", "1.5s"} {
		if !strings.Contains(got, want) {
			t.Errorf("historyLine() = %q, missing %q", got, want)
		}
	}
}

func TestAuthSummary(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.AuthConfig
		want string
	}{
		{name: "disabled", cfg: config.AuthConfig{Disabled: true, JWTSecret: "s"}, want: "disabled"},
		{name: "no secret", cfg: config.AuthConfig{}, want: "enabled, no secret set"},
		{name: "enabled", cfg: config.AuthConfig{JWTSecret: "s", Issuer: "filecat"}, want: "enabled, issuer filecat"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := authSummary(tt.cfg); got != tt.want {
				t.Errorf("authSummary() = %q, want %q", got, tt.want)
			}
		})
	}
}
