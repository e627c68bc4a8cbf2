package form

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"aimclient/internal/webclient"
)

const samplePage = `
<html><body>
<form action="run.php" method="post">
  <input type="hidden" name="token" value="abc123">
  <input type="text" name="Temp(K)" value="298">
  <label for="ice">Equilibrate over ice?</label>
  <input type="checkbox" name="solid1" value="Ice" id="ice">
  <input type="checkbox" name="solid2" value="NH4NO3" checked>
  <select name="interactive_type">
    <option value="1">fixed composition</option>
    <option value="2" selected>relative humidity</option>
  </select>
  <textarea name="species_input">preset</textarea>
  <input type="text" value="nameless is skipped">
  <input type="submit" name="go" value="Run model">
</form>
</body></html>`

func TestParse(t *testing.T) {
	t.Parallel()

	skel, err := Parse(samplePage, "https://example.com/aim/model2a.php")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if skel == nil {
		t.Fatal("Parse returned nil skeleton for a page with a form")
	}

	if got, want := skel.ActionURL, "https://example.com/aim/run.php"; got != want {
		t.Errorf("ActionURL = %q, want %q", got, want)
	}

	want := []Field{
		{Name: "token", Kind: KindText, Value: "abc123"},
		{Name: "Temp(K)", Kind: KindText, Value: "298"},
		{Name: "solid1", Kind: KindCheckbox, Value: "Ice", Label: "Equilibrate over ice?"},
		{Name: "solid2", Kind: KindCheckbox, Value: "NH4NO3", Checked: true},
		{
			Name: "interactive_type", Kind: KindSelect, Value: "2",
			Options: []Option{{Value: "1"}, {Value: "2", Selected: true}},
		},
		{Name: "species_input", Kind: KindTextarea, Value: "preset"},
	}
	if diff := cmp.Diff(want, skel.Fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}

	if skel.Submit == nil {
		t.Fatal("no submit control discovered")
	}
	if skel.Submit.Name != "go" || skel.Submit.Value != "Run model" {
		t.Errorf("submit = %+v, want go/Run model", skel.Submit)
	}
}

func TestParse_NoForm(t *testing.T) {
	t.Parallel()

	skel, err := Parse(`<html><body><p>maintenance</p></body></html>`, "https://example.com/x")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if skel != nil {
		t.Fatalf("expected nil skeleton, got %+v", skel)
	}
}

// TestParse_ActionDefaults verifies a missing action attribute resolves to
// the page URL itself.
func TestParse_ActionDefaults(t *testing.T) {
	t.Parallel()

	skel, err := Parse(`<form><input name="a" value="1"></form>`, "https://example.com/page.php")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if skel.ActionURL != "https://example.com/page.php" {
		t.Errorf("ActionURL = %q, want page URL", skel.ActionURL)
	}
}

// TestParse_SelectFallsBackToFirstOption covers a select with no option
// marked selected.
func TestParse_SelectFallsBackToFirstOption(t *testing.T) {
	t.Parallel()

	skel, err := Parse(`<form><select name="mode">
		<option value="x">X</option>
		<option value="y">Y</option>
	</select></form>`, "https://example.com/")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	f := skel.Field("mode")
	if f == nil {
		t.Fatal("field mode not found")
	}
	if f.Value != "x" {
		t.Errorf("select default = %q, want %q", f.Value, "x")
	}
}

// TestParse_SubmitButtonText verifies the submit value fallback chain: value
// attribute, then visible text, then "Run".
func TestParse_SubmitButtonText(t *testing.T) {
	t.Parallel()

	t.Run("button text", func(t *testing.T) {
		t.Parallel()
		skel, err := Parse(`<form><button name="do"> Run the model </button></form>`, "https://example.com/")
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if skel.Submit == nil || skel.Submit.Value != "Run the model" {
			t.Fatalf("submit = %+v, want button text", skel.Submit)
		}
	})

	t.Run("literal fallback", func(t *testing.T) {
		t.Parallel()
		skel, err := Parse(`<form><input type="submit" name="do"></form>`, "https://example.com/")
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if skel.Submit == nil || skel.Submit.Value != "Run" {
			t.Fatalf("submit = %+v, want Run", skel.Submit)
		}
	})

	t.Run("unnamed controls are skipped", func(t *testing.T) {
		t.Parallel()
		skel, err := Parse(`<form>
			<input type="submit" value="nope">
			<input type="submit" name="go" value="yes">
		</form>`, "https://example.com/")
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if skel.Submit == nil || skel.Submit.Name != "go" {
			t.Fatalf("submit = %+v, want go", skel.Submit)
		}
	})
}

func TestDiscover(t *testing.T) {
	t.Parallel()

	t.Run("fetches and parses the page", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(samplePage))
		}))
		defer srv.Close()

		sess := webclient.NewSession(nil, webclient.Config{PageURL: srv.URL, Timeout: 5 * time.Second})
		skel, err := Discover(context.Background(), sess)
		if err != nil {
			t.Fatalf("Discover: %v", err)
		}
		if skel == nil || skel.Field("Temp(K)") == nil {
			t.Fatalf("skeleton = %+v", skel)
		}
	})

	t.Run("formless page yields nil skeleton", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html><p>maintenance</p></html>"))
		}))
		defer srv.Close()

		sess := webclient.NewSession(nil, webclient.Config{PageURL: srv.URL, Timeout: 5 * time.Second})
		skel, err := Discover(context.Background(), sess)
		if err != nil {
			t.Fatalf("Discover: %v", err)
		}
		if skel != nil {
			t.Fatalf("skeleton = %+v, want nil", skel)
		}
	})

	t.Run("transport failure is an error", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "down", http.StatusBadGateway)
		}))
		defer srv.Close()

		sess := webclient.NewSession(nil, webclient.Config{PageURL: srv.URL, Timeout: 5 * time.Second})
		if _, err := Discover(context.Background(), sess); err == nil {
			t.Fatal("expected error for 502")
		}
	})
}

func TestParse_FirstFormOnly(t *testing.T) {
	t.Parallel()

	skel, err := Parse(`
		<form action="/first"><input name="a" value="1"></form>
		<form action="/second"><input name="b" value="2"></form>
	`, "https://example.com/")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if skel.ActionURL != "https://example.com/first" {
		t.Errorf("ActionURL = %q, want first form's action", skel.ActionURL)
	}
	if skel.Field("b") != nil {
		t.Error("second form's field leaked into the skeleton")
	}
}
