// internal/browser/cdp/scripts.go
package cdp

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Element handles live in a per-document registry so that identity survives
// across evaluations. The registry is append-only; an element keeps its index.
const registryJS = `(() => {
	if (!window.__tcReg) {
		window.__tcReg = [];
		window.__tcIdx = (el) => {
			let i = window.__tcReg.indexOf(el);
			if (i < 0) { window.__tcReg.push(el); i = window.__tcReg.length - 1; }
			return i;
		};
		window.__tcGet = (i) => {
			const el = window.__tcReg[i];
			if (!el || !el.isConnected) { throw new Error("stale element handle " + i); }
			return el;
		};
		window.__tcRef = (el) => {
			const tag = (el.tagName || "").toLowerCase();
			return { i: window.__tcIdx(el), e: tag === "textarea" || tag === "input" };
		};
		window.__tcVisible = (el) => {
			const r = el.getBoundingClientRect();
			const s = window.getComputedStyle(el);
			return r.width > 0 && r.height > 0 && s.visibility !== "hidden" && s.display !== "none";
		};
	}
})();`

func jsString(s string) string {
	b, err := jsonAPI.Marshal(s)
	if err != nil {
		// strings always marshal
		panic(err)
	}
	return string(b)
}

func withRegistry(body string) string {
	return registryJS + "\n" + body
}

func queryAllJS(selector string) string {
	return withRegistry(fmt.Sprintf(`Array.from(document.querySelectorAll(%s)).map(window.__tcRef)`, jsString(selector)))
}

func queryFirstJS(selector string) string {
	return withRegistry(fmt.Sprintf(`(() => { const el = document.querySelector(%s); return el ? window.__tcRef(el) : { i: -1, e: false }; })()`, jsString(selector)))
}

// firstVisibleJS yields index+1 of the first visible match, or 0, so it can be polled for truthiness.
func firstVisibleJS(selector string) string {
	return withRegistry(fmt.Sprintf(`(() => {
	for (const el of document.querySelectorAll(%s)) {
		if (window.__tcVisible(el)) { return window.__tcIdx(el) + 1; }
	}
	return 0;
})()`, jsString(selector)))
}

func bodyJS() string {
	return withRegistry(`(() => document.body ? window.__tcIdx(document.body) : -1)()`)
}

func snapshotJS(idx int) string {
	return withRegistry(fmt.Sprintf(`(() => {
	const el = window.__tcGet(%d);
	const tag = (el.tagName || "").toLowerCase();
	const v = (tag === "textarea" || tag === "input") ? el.value : el.textContent;
	return String(v || "").trim();
})()`, idx))
}

func visibleJS(idx int) string {
	return withRegistry(fmt.Sprintf(`window.__tcVisible(window.__tcGet(%d))`, idx))
}

func focusJS(idx int) string {
	return withRegistry(fmt.Sprintf(`(() => { window.__tcGet(%d).focus(); return true; })()`, idx))
}

// fillJS writes through the native value setter so that frameworks observing
// the property see the change, then fires input and change events. Rich-text
// editors get their text content replaced.
func fillJS(idx int, text string) string {
	return withRegistry(fmt.Sprintf(`(() => {
	const el = window.__tcGet(%d);
	const text = %s;
	el.focus();
	const tag = (el.tagName || "").toLowerCase();
	if (tag === "textarea" || tag === "input") {
		const desc = Object.getOwnPropertyDescriptor(Object.getPrototypeOf(el), "value");
		if (desc && desc.set) { desc.set.call(el, text); } else { el.value = text; }
	} else {
		el.textContent = text;
	}
	el.dispatchEvent(new Event("input", { bubbles: true }));
	el.dispatchEvent(new Event("change", { bubbles: true }));
	return true;
})()`, idx, jsString(text)))
}

// clickClearJS clicks the first button whose accessible name matches pattern.
func clickClearJS(pattern string) string {
	return fmt.Sprintf(`(() => {
	const re = %s;
	const buttons = document.querySelectorAll("button, [role=button], input[type=button], input[type=submit], input[type=reset]");
	for (const b of buttons) {
		const name = b.getAttribute("aria-label") || b.innerText || b.value || b.title || "";
		if (re.test(name)) { b.click(); return true; }
	}
	return false;
})()`, pattern)
}
