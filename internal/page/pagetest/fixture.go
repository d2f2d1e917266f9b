// internal/page/pagetest/fixture.go
package pagetest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

// TranslatorHTML is a static translator page for driver integration tests.
// Its output div carries no identifier and updates shortly after each input event;
// every non-empty output starts with Sinhala text.
const TranslatorHTML = `<!doctype html>
<html><head><meta charset="utf-8"><title>translator</title></head>
<body>
  <div class="pane"><span>English</span><textarea rows="4" cols="40"></textarea></div>
  <div class="pane"><span>Sinhala</span><div class="out" style="min-height:20px"></div></div>
  <button aria-label="Clear">x</button>
  <textarea readonly style="display:none"></textarea>
  <script>
    const input = document.querySelector("textarea");
    const out = document.querySelector("div.out");
    let timer = null;
    const render = () => { out.textContent = input.value.trim() ? "ඔබ " + input.value : ""; };
    input.addEventListener("input", () => { clearTimeout(timer); timer = setTimeout(render, 150); });
    document.querySelector("button").addEventListener("click", () => { input.value = ""; render(); });
  </script>
</body></html>`

// KeyupTranslatorHTML renders only on keyup, so text inserted without key
// events never produces output.
const KeyupTranslatorHTML = `<!doctype html>
<html><head><meta charset="utf-8"><title>translator</title></head>
<body>
  <div class="pane"><span>English</span><textarea rows="4" cols="40"></textarea></div>
  <div class="pane"><span>Sinhala</span><div class="out" style="min-height:20px"></div></div>
  <script>
    const input = document.querySelector("textarea");
    const out = document.querySelector("div.out");
    input.addEventListener("keyup", () => { out.textContent = input.value.trim() ? "ඔබ " + input.value : ""; });
  </script>
</body></html>`

// EditorTranslatorHTML takes its input from a contenteditable editor.
const EditorTranslatorHTML = `<!doctype html>
<html><head><meta charset="utf-8"><title>translator</title></head>
<body>
  <div class="pane"><span>English</span><div class="editor" contenteditable="true" style="min-height:20px"></div></div>
  <div class="pane"><span>Sinhala</span><div class="out" style="min-height:20px"></div></div>
  <script>
    const input = document.querySelector("div.editor");
    const out = document.querySelector("div.out");
    input.addEventListener("input", () => { out.textContent = input.textContent.trim() ? "ඔබ " + input.textContent : ""; });
  </script>
</body></html>`

// NewServer serves html at the root path until the test ends.
func NewServer(t testing.TB, html string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, html)
	}))
	t.Cleanup(srv.Close)
	return srv
}
