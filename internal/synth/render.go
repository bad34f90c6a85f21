package synth

import (
	"fmt"
	"strconv"
	"strings"

	"looprec/backend/internal/actionlog"
)

const (
	DefaultBrowser    = "chrome"
	DefaultTimeout    = 10
	DefaultMaxRetries = 3
	DefaultMaxPages   = 100
)

var browserClasses = map[string]string{
	"chrome":  "Chrome",
	"firefox": "Firefox",
	"edge":    "Edge",
	"safari":  "Safari",
}

// Options tunes the generated script. Zero fields take the defaults.
type Options struct {
	// BaseURL overrides the program's own base URL when set.
	BaseURL string
	// Browser is one of chrome, firefox, edge or safari.
	Browser string
	// Timeout is the per-element wait in seconds.
	Timeout int
	// MaxRetries bounds the attempts per row after stale-element failures.
	MaxRetries int
	// MaxPages bounds pagination per loop.
	MaxPages int
}

func (o Options) withDefaults() Options {
	if _, ok := browserClasses[strings.ToLower(o.Browser)]; !ok {
		o.Browser = DefaultBrowser
	}
	o.Browser = strings.ToLower(o.Browser)
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.MaxPages <= 0 {
		o.MaxPages = DefaultMaxPages
	}
	return o
}

// Compile turns an action log into a script. It never fails: malformed
// structure degrades into warnings carried as comments in the output.
func Compile(actions []actionlog.Action, opts Options) string {
	return Render(Build(actions), opts)
}

// CompileRecord is Compile over a persisted record.
func CompileRecord(rec actionlog.Record, opts Options) string {
	return Render(BuildRecord(rec), opts)
}

// Render emits the Python Selenium script for p. Output is a pure function of
// p and opts.
func Render(p *Program, opts Options) string {
	opts = opts.withDefaults()
	baseURL := p.BaseURL
	if opts.BaseURL != "" {
		baseURL = opts.BaseURL
	}

	r := &renderer{p: p}
	r.scan()

	r.line(0, "#!/usr/bin/env python3")
	r.line(0, `"""Replays a recorded browser session. Generated by looprec; edit freely."""`)
	r.blank()
	for _, w := range p.Warnings {
		r.line(0, "# warning: "+pyComment(w))
	}
	if len(p.Warnings) > 0 {
		r.blank()
	}
	r.raw(imports)
	r.blank()
	r.line(0, "BASE_URL = "+pyString(baseURL))
	r.line(0, "TIMEOUT = "+strconv.Itoa(opts.Timeout))
	r.line(0, "MAX_RETRIES = "+strconv.Itoa(opts.MaxRetries))
	r.line(0, "MAX_PAGES = "+strconv.Itoa(opts.MaxPages))
	r.line(0, "NAVIGATION_GRACE = 3")
	r.blank()
	r.line(0, "driver = None")
	r.line(0, "wait = None")
	r.line(0, "data = {}")
	r.line(0, "results = []")
	r.blank()
	r.raw(helperCore)
	if r.usesFill {
		r.raw(helperFill)
	}
	if r.usesChoose {
		r.raw(helperChoose)
	}
	if len(p.Loops()) > 0 {
		r.raw(helperLoop)
	}
	if r.usesAdvance {
		r.raw(helperAdvance)
	}

	n := 0
	for _, it := range p.Items {
		if it.Loop == nil {
			continue
		}
		n++
		r.loop(n, it.Loop)
	}

	r.blank()
	r.line(0, "def main():")
	r.line(1, "if BASE_URL:")
	r.line(2, "driver.get(BASE_URL)")
	n = 0
	for _, it := range p.Items {
		if it.Loop != nil {
			n++
			r.line(1, fmt.Sprintf("loop_%d()", n))
			continue
		}
		r.step(1, it.Step, "data")
	}

	r.blank()
	r.blank()
	r.line(0, `if __name__ == "__main__":`)
	r.line(1, "driver = webdriver."+browserClasses[opts.Browser]+"()")
	r.line(1, "wait = WebDriverWait(driver, TIMEOUT)")
	r.raw(entryPoint)
	return r.b.String()
}

type renderer struct {
	p           *Program
	b           strings.Builder
	usesFill    bool
	usesChoose  bool
	usesAdvance bool
}

func (r *renderer) scan() {
	for _, s := range r.p.Steps {
		switch s.Kind {
		case actionlog.KindInput:
			r.usesFill = true
		case actionlog.KindSelect:
			r.usesChoose = true
		}
	}
	for _, l := range r.p.Loops() {
		if l.Next != "" {
			r.usesAdvance = true
		}
	}
}

func (r *renderer) line(depth int, s string) {
	r.b.WriteString(strings.Repeat("    ", depth))
	r.b.WriteString(s)
	r.b.WriteByte('\n')
}

func (r *renderer) blank() { r.b.WriteByte('\n') }

func (r *renderer) raw(s string) { r.b.WriteString(s) }

func (r *renderer) loop(n int, l *Loop) {
	r.blank()
	r.line(0, fmt.Sprintf("def loop_%d():", n))
	r.line(1, pyDoc("Iterate the rows of "+l.Subject+"."))
	r.line(1, "subject = "+pyString(l.Subject))
	r.line(1, "row_locator = "+pyString(l.Rows))
	if l.Next != "" {
		r.line(1, "next_locator = "+pyString(l.Next))
	}
	for _, idx := range l.Setup {
		r.step(1, idx, "data")
	}
	r.line(1, "page = 1")

	depth := 1
	if l.Next != "" {
		r.line(1, "while True:")
		depth = 2
	}
	r.line(depth, "count = len(rows_of(subject, row_locator))")
	r.line(depth, "for index in range(count):")
	r.line(depth+1, "for attempt in range(1, MAX_RETRIES + 1):")
	r.line(depth+2, `record = {"_page": page, "_row": index + 1}`)
	r.line(depth+2, "try:")
	r.line(depth+3, "row = rows_of(subject, row_locator)[index]")
	for _, idx := range l.Body {
		r.step(depth+3, idx, "record")
	}
	r.line(depth+3, "results.append(record)")
	r.line(depth+3, "break")
	r.line(depth+2, "except StaleElementReferenceException:")
	r.line(depth+3, `log(f"page {page} row {index + 1}: stale element, retrying ({attempt}/{MAX_RETRIES})")`)
	r.line(depth+2, "except (NoSuchElementException, TimeoutException, WebDriverException, IndexError) as exc:")
	r.line(depth+3, `log(f"page {page} row {index + 1}: {exc}")`)
	r.line(depth+3, "break")
	r.line(depth+1, "else:")
	r.line(depth+2, `log(f"page {page} row {index + 1}: giving up after {MAX_RETRIES} attempts")`)
	if l.Next != "" {
		r.line(2, "if page >= MAX_PAGES or not advance(next_locator, subject):")
		r.line(3, "break")
		r.line(2, "page += 1")
	}
	r.blank()
}

// step emits one statement. sink names the dict that receives labels.
func (r *renderer) step(depth, idx int, sink string) {
	s := r.p.Steps[idx]
	r.line(depth, fmt.Sprintf("# step %d: %s", idx+1, s.Kind))

	target := "find(" + pyString(s.Locator) + ")"
	if s.InRow {
		target = "find_in(row, " + pyString(s.Locator) + ")"
	}

	switch s.Kind {
	case actionlog.KindClick:
		if !s.InRow {
			r.line(depth, target+".click()")
			return
		}
		follow := "None"
		if len(s.PostClick) > 0 {
			follow = fmt.Sprintf("follow_up_%d", idx+1)
			r.line(depth, "def "+follow+"():")
			for _, post := range s.PostClick {
				r.step(depth+1, post, sink)
			}
		}
		r.line(depth, "visit("+target+", "+follow+", subject)")
		r.line(depth, "row = rows_of(subject, row_locator)[index]")
	case actionlog.KindInput:
		r.line(depth, "fill("+target+", "+pyString(s.Value)+")")
	case actionlog.KindSelect:
		r.line(depth, "choose("+target+", "+pyString(s.Value)+", "+pyString(s.OptionValue)+")")
	case actionlog.KindLabel:
		r.line(depth, sink+"["+pyString(labelKey(s, idx))+"] = "+target+".text")
	}
}

func labelKey(s Step, idx int) string {
	if strings.TrimSpace(s.Label) != "" {
		return s.Label
	}
	return fmt.Sprintf("field_%d", idx+1)
}

// pyString quotes s as a double-quoted Python string literal.
func pyString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	writeEscaped(&b, s, true)
	b.WriteByte('"')
	return b.String()
}

// pyComment keeps s on a single comment line by escaping control characters.
func pyComment(s string) string {
	var b strings.Builder
	writeEscaped(&b, s, false)
	return b.String()
}

func writeEscaped(b *strings.Builder, s string, quoted bool) {
	for _, c := range s {
		switch {
		case c == '\\' && quoted:
			b.WriteString(`\\`)
		case c == '"' && quoted:
			b.WriteString(`\"`)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\r':
			b.WriteString(`\r`)
		case c == '\t':
			b.WriteString(`\t`)
		case c < 0x20 || c == 0x7f:
			fmt.Fprintf(b, `\x%02x`, c)
		default:
			b.WriteRune(c)
		}
	}
}

func pyDoc(s string) string {
	var b strings.Builder
	b.WriteString(`"""`)
	writeEscaped(&b, s, true)
	b.WriteString(`"""`)
	return b.String()
}

const imports = `import json
import sys

from selenium import webdriver
from selenium.common.exceptions import (
    NoSuchElementException,
    StaleElementReferenceException,
    TimeoutException,
    WebDriverException,
)
from selenium.webdriver.common.by import By
from selenium.webdriver.support import expected_conditions as EC
from selenium.webdriver.support.ui import Select, WebDriverWait
`

const helperCore = `
def log(message):
    print(message, file=sys.stderr)


def find(locator):
    """Wait for an element on the current page."""
    return wait.until(EC.presence_of_element_located((By.CSS_SELECTOR, locator)))

`

const helperFill = `
def fill(element, value):
    element.clear()
    element.send_keys(value)

`

const helperChoose = `
def choose(element, text, value):
    menu = Select(element)
    try:
        menu.select_by_visible_text(text)
    except NoSuchElementException:
        menu.select_by_value(value)

`

const helperLoop = `
def find_in(scope, locator):
    """Wait for an element inside scope; an empty locator is scope itself."""
    if not locator:
        return scope
    return WebDriverWait(scope, TIMEOUT).until(
        lambda s: s.find_element(By.CSS_SELECTOR, locator)
    )


def is_header_row(row):
    return bool(row.find_elements(By.TAG_NAME, "th")) and not row.find_elements(By.TAG_NAME, "td")


def rows_of(table_locator, row_locator):
    """Fetch the current rows of a loop subject, skipping header rows."""
    table = find(table_locator)
    if row_locator:
        rows = table.find_elements(By.CSS_SELECTOR, row_locator)
    elif table.find_elements(By.TAG_NAME, "tr"):
        rows = table.find_elements(By.TAG_NAME, "tr")
    elif table.find_elements(By.CSS_SELECTOR, "[role='row']"):
        rows = table.find_elements(By.CSS_SELECTOR, "[role='row']")
    else:
        rows = table.find_elements(By.XPATH, "./*")
    return [row for row in rows if not is_header_row(row)]


def visit(element, follow_up, return_locator):
    """Click element, run follow_up where it leads, then come back."""
    origin_url = driver.current_url
    origin_handle = driver.current_window_handle
    known = set(driver.window_handles)
    element.click()
    try:
        WebDriverWait(driver, NAVIGATION_GRACE).until(
            lambda d: len(d.window_handles) > len(known) or d.current_url != origin_url
        )
    except TimeoutException:
        pass
    opened = [h for h in driver.window_handles if h not in known]
    if opened:
        driver.switch_to.window(opened[0])
        try:
            if follow_up:
                follow_up()
        finally:
            driver.close()
            driver.switch_to.window(origin_handle)
    else:
        try:
            if follow_up:
                follow_up()
        finally:
            if driver.current_url != origin_url:
                driver.back()
    find(return_locator)

`

const helperAdvance = `
def advance(next_locator, table_locator):
    """Activate the pagination control if it is present and enabled."""
    try:
        button = driver.find_element(By.CSS_SELECTOR, next_locator)
    except NoSuchElementException:
        return False
    if not button.is_displayed() or not button.is_enabled():
        return False
    if button.get_attribute("disabled") is not None:
        return False
    if (button.get_attribute("aria-disabled") or "").lower() == "true":
        return False
    if "disabled" in (button.get_attribute("class") or "").split():
        return False
    table = find(table_locator)
    button.click()
    try:
        WebDriverWait(driver, TIMEOUT).until(EC.staleness_of(table))
    except TimeoutException:
        pass
    find(table_locator)
    return True

`

const entryPoint = `    try:
        main()
    except Exception as exc:
        log(f"run failed: {exc}")
        raise
    finally:
        driver.quit()
        print(json.dumps({"data": data, "rows": results}, indent=2, ensure_ascii=False))
`
