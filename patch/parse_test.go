package patch

import (
	"errors"
	"strings"
	"testing"
)

const simpleDiff = `--- a/greet.go
+++ b/greet.go
@@ -1,3 +1,3 @@
 package main
-func Greet() string { return "hi" }
+func Greet() string { return "hello" }

`

func TestParseSimpleDiff(t *testing.T) {
	files, err := Parse(simpleDiff)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("got %d file diffs, want 1", len(files))
	}
	fd := files[0]
	if fd.Path != "greet.go" {
		t.Errorf("path = %q, want %q", fd.Path, "greet.go")
	}
	if len(fd.Hunks) != 1 {
		t.Fatalf("got %d hunks, want 1", len(fd.Hunks))
	}
	h := fd.Hunks[0]
	if h.OldStart != 1 || h.OldLines != 3 || h.NewStart != 1 || h.NewLines != 3 {
		t.Errorf("hunk header = @@ -%d,%d +%d,%d @@, want @@ -1,3 +1,3 @@",
			h.OldStart, h.OldLines, h.NewStart, h.NewLines)
	}
	if len(h.Lines) != 4 {
		t.Errorf("got %d body lines, want 4", len(h.Lines))
	}
}

func TestParseBlankContextLineWithoutLeadingSpace(t *testing.T) {
	// Many producers drop the leading space on blank context lines; the
	// bare empty line still counts on both sides of the hunk.
	d := `--- a/doc.txt
+++ b/doc.txt
@@ -1,3 +1,3 @@
 first

-old
+new
`
	files, err := Parse(d)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	h := files[0].Hunks[0]
	if len(h.Lines) != 4 {
		t.Fatalf("got %d body lines, want 4", len(h.Lines))
	}
	if h.Lines[1].Op != OpContext || h.Lines[1].Text != "" {
		t.Errorf("line 2 = %+v, want blank context", h.Lines[1])
	}
}

func TestParseEmptyPatch(t *testing.T) {
	if _, err := Parse("   \n"); err == nil {
		t.Fatal("expected error for empty patch")
	}
}

func TestParseHeaderBodyMismatch(t *testing.T) {
	// Header claims 4 old lines; body has 3.
	bad := `--- a/x.txt
+++ b/x.txt
@@ -1,4 +1,3 @@
 one
-two
+deux
 three
`
	_, err := Parse(bad)
	if err == nil {
		t.Fatal("expected error for header/body count mismatch")
	}
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error type = %T, want *ParseError", err)
	}
	if pe.Hunk != 1 {
		t.Errorf("hunk index = %d, want 1", pe.Hunk)
	}
	if !strings.Contains(pe.Reason, "old lines") {
		t.Errorf("reason = %q, want mention of old line count", pe.Reason)
	}
}

func TestParseNonMonotonicHunks(t *testing.T) {
	bad := `--- a/x.txt
+++ b/x.txt
@@ -10,2 +10,2 @@
 ten
-eleven
+onze
@@ -5,2 +5,2 @@
 five
-six
+seis
`
	_, err := Parse(bad)
	if err == nil {
		t.Fatal("expected error for decreasing hunk offsets")
	}
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error type = %T, want *ParseError", err)
	}
	if pe.Hunk != 2 {
		t.Errorf("hunk index = %d, want 2", pe.Hunk)
	}
}

func TestParseNewFileDiff(t *testing.T) {
	newFile := `--- /dev/null
+++ b/created.txt
@@ -0,0 +1,2 @@
+first
+second
`
	files, err := Parse(newFile)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if !files[0].IsNew {
		t.Error("IsNew = false, want true")
	}
	if files[0].Path != "created.txt" {
		t.Errorf("path = %q, want %q", files[0].Path, "created.txt")
	}
}

func TestParseDeleteFileDiff(t *testing.T) {
	del := `--- a/gone.txt
+++ /dev/null
@@ -1,2 +0,0 @@
-first
-second
`
	files, err := Parse(del)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if !files[0].IsDelete {
		t.Error("IsDelete = false, want true")
	}
	if files[0].Path != "gone.txt" {
		t.Errorf("path = %q, want %q", files[0].Path, "gone.txt")
	}
}

func TestParseMultiFile(t *testing.T) {
	multi := `--- a/one.txt
+++ b/one.txt
@@ -1,1 +1,1 @@
-a
+b
--- a/two.txt
+++ b/two.txt
@@ -1,1 +1,1 @@
-c
+d
`
	files, err := Parse(multi)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d file diffs, want 2", len(files))
	}
	if files[0].Path != "one.txt" || files[1].Path != "two.txt" {
		t.Errorf("paths = %q, %q", files[0].Path, files[1].Path)
	}
}

func TestParseRejectsBadPrefix(t *testing.T) {
	bad := `--- a/x.txt
+++ b/x.txt
@@ -1,1 +1,1 @@
?what
`
	if _, err := Parse(bad); err == nil {
		t.Fatal("expected error for unrecognized line prefix")
	}
}
