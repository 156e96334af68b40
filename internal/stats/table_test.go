package stats

import "testing"

func TestFormatTableAlignsColumns(t *testing.T) {
	headers := []string{"Exam", "Accuracy", "Wrong"}
	rows := [][]string{
		{"Exam 3", "97%", "12"},
		{"模擬", "8%", "3"},
	}
	rightAlign := map[int]bool{1: true, 2: true}

	lines := formatTable(headers, rows, rightAlign)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0] != "Exam   Accuracy Wrong" {
		t.Fatalf("unexpected header line: %q", lines[0])
	}
	if lines[1] != "Exam 3      97%    12" {
		t.Fatalf("unexpected row line: %q", lines[1])
	}
	if lines[2] != "模擬         8%     3" {
		t.Fatalf("expected wide runes padded by display width, got %q", lines[2])
	}
}
