package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hyprcore/hypridle/internal/logger"
)

func parseInt(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

// loadResult accumulates the parse output across a main file and every
// file it transitively sources.
type loadResult struct {
	rules   []Rule
	scalars map[string]string
	errs    []error
}

// Load resolves path (already discovered by Discover) and parses it,
// following "source = <glob>" includes. It returns a fatal error only
// when the file cannot be read at all, or when parsing leaves zero
// usable rules; individual malformed listener blocks are recorded as
// RuleErrors and skipped instead.
func Load(path string) (*View, error) {
	res := &loadResult{scalars: make(map[string]string)}
	visited := make(map[string]struct{})

	if err := res.loadFile(path, visited); err != nil {
		return nil, err
	}

	if len(res.rules) == 0 {
		if len(res.errs) > 0 {
			return nil, fmt.Errorf("no usable listener rules after %d rule error(s), last: %w", len(res.errs), res.errs[len(res.errs)-1])
		}
		return nil, fmt.Errorf("no listener rules configured in %s", path)
	}

	for _, e := range res.errs {
		logger.Warn("skipping invalid listener rule", "error", e)
	}

	return &View{rules: res.rules, scalars: res.scalars}, nil
}

func canonicalPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real
	}
	return abs
}

func (res *loadResult) loadFile(path string, visited map[string]struct{}) error {
	canon := canonicalPath(path)
	if _, ok := visited[canon]; ok {
		logger.Warn("source cycle detected, skipping re-inclusion", "path", path)
		return nil
	}
	visited[canon] = struct{}{}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening config %s: %w", path, err)
	}
	defer f.Close()

	dir := filepath.Dir(path)
	sc := bufio.NewScanner(f)

	var (
		inCategory string
		listenerN  int
		cur        Rule
		curSet     bool
	)

	finishListener := func() {
		if !curSet {
			return
		}
		if cur.TimeoutSec == 0 {
			res.errs = append(res.errs, &RuleError{Source: path, Index: listenerN, Reason: "missing or zero timeout"})
		} else if cur.TimeoutSec == -1 {
			res.errs = append(res.errs, &RuleError{Source: path, Index: listenerN, Reason: "timeout == -1 is rejected"})
		} else if cur.TimeoutSec < 0 {
			res.errs = append(res.errs, &RuleError{Source: path, Index: listenerN, Reason: "negative timeout"})
		} else {
			res.rules = append(res.rules, cur)
		}
		cur = Rule{}
		curSet = false
	}

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if line == "}" {
			if inCategory == "listener" {
				finishListener()
			}
			inCategory = ""
			continue
		}

		if strings.HasSuffix(line, "{") {
			name := strings.TrimSpace(strings.TrimSuffix(line, "{"))
			inCategory = name
			if name == "listener" {
				listenerN++
				cur = Rule{}
				curSet = true
			}
			continue
		}

		key, val, ok := splitKV(line)
		if !ok {
			continue
		}

		if inCategory == "" {
			if key == "source" {
				if err := res.loadSourced(dir, val, visited); err != nil {
					res.errs = append(res.errs, err)
				}
			}
			continue
		}

		if inCategory == "general" {
			res.scalars["general:"+key] = val
			continue
		}

		if inCategory == "listener" {
			switch key {
			case "timeout":
				n, err := parseInt(val)
				if err != nil {
					res.errs = append(res.errs, &RuleError{Source: path, Index: listenerN, Reason: "unparsable timeout: " + val})
					continue
				}
				cur.TimeoutSec = n
			case "on-timeout":
				cur.OnTimeout = unquote(val)
			case "on-resume":
				cur.OnResume = unquote(val)
			case "ignore_inhibit":
				cur.IgnoreInhibit = val == "1" || val == "true" || val == "yes"
			}
		}
	}

	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}

	return nil
}

// loadSourced expands a "source = <glob>" directive relative to dir and
// recursively loads every match. A pattern containing no glob
// metacharacters that fails to match any file is an error; a genuine
// glob that matches nothing is not (spec.md §6, §8 scenario 6).
func (res *loadResult) loadSourced(dir, pattern string, visited map[string]struct{}) error {
	pattern = unquote(pattern)
	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(dir, pattern)
	}

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("source %q: %w", pattern, err)
	}

	if len(matches) == 0 {
		if !isGlobPattern(pattern) {
			return fmt.Errorf("source %q: no such file", pattern)
		}
		return nil
	}

	for _, m := range matches {
		if err := res.loadFile(m, visited); err != nil {
			return err
		}
	}
	return nil
}

func isGlobPattern(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

func splitKV(line string) (key, val string, ok bool) {
	idx := strings.Index(line, "=")
	if idx < 0 {
		return "", "", false
	}
	key = strings.TrimSpace(line[:idx])
	val = strings.TrimSpace(line[idx+1:])
	if key == "" {
		return "", "", false
	}
	return key, val, true
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
