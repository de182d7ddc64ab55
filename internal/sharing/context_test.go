package sharing

import "testing"

func TestEnterShareRestoresMode(t *testing.T) {
	ctx := NewContext()
	if ctx.Sharing() {
		t.Fatalf("fresh context should start in persist mode")
	}
	release := ctx.EnterShare()
	if !ctx.Sharing() {
		t.Fatalf("expected share mode inside scope")
	}
	release()
	if ctx.Sharing() {
		t.Fatalf("expected persist mode after release")
	}
}

func TestEnterShareNests(t *testing.T) {
	ctx := NewContext()
	outer := ctx.EnterShare()
	inner := ctx.EnterShare()
	inner()
	if !ctx.Sharing() {
		t.Fatalf("inner release must leave the outer share scope intact")
	}
	outer()
	if ctx.Sharing() {
		t.Fatalf("outer release must restore persist mode")
	}
}

func TestEnterShareRestoresOnErrorPath(t *testing.T) {
	ctx := NewContext()
	func() {
		release := ctx.EnterShare()
		defer release()
		panicIfSharingLost := func() {
			if !ctx.Sharing() {
				t.Fatalf("mode lost mid-scope")
			}
		}
		panicIfSharingLost()
		// simulate an error exit; the deferred release still runs
	}()
	if ctx.Sharing() {
		t.Fatalf("expected persist mode after scope unwound")
	}
}

func TestModeString(t *testing.T) {
	if Persist.String() != "persist" || Share.String() != "share" {
		t.Fatalf("unexpected mode names: %s, %s", Persist, Share)
	}
}
