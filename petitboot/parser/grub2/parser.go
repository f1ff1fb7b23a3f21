package grub2

import "strings"

// rawLine is one non-blank, non-comment physical line split into words.
type rawLine struct {
	words []word
	first string // lowercased first word, for keyword dispatch
}

// scanLines splits buf into its non-blank, non-comment lines, each split
// into words. It does not merge lines; a brace block written across lines
// ("menuentry 'x' {" on one line, "}" alone on another) is reassembled by
// parseStatements.
func scanLines(buf []byte) []rawLine {
	var out []rawLine

	for _, raw := range strings.Split(string(buf), "\n") {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		words := scanLine(trimmed)
		if len(words) == 0 {
			continue
		}

		first := ""
		if words[0].kind == wordText {
			first = strings.ToLower(words[0].text)
		}

		out = append(out, rawLine{words: words, first: first})
	}

	return out
}

// Parse builds a Block of Statements from the lines of a grub.cfg file.
// It understands menuentry/function brace blocks and if/for keyword
// blocks; anything else becomes a Simple statement.
func Parse(buf []byte) Block {
	lines := scanLines(buf)
	stmts, _ := parseStatements(lines, 0)
	return Block{Statements: stmts}
}

// parseStatements consumes lines starting at i until a block terminator
// (fi/done/closing-brace-only line) or end of input, returning the
// statements built and the index just past the terminator.
func parseStatements(lines []rawLine, i int) ([]Statement, int) {
	var stmts []Statement

	for i < len(lines) {
		line := lines[i]

		switch line.first {
		case "fi", "done":
			return stmts, i + 1
		case "}":
			return stmts, i + 1
		case "if":
			st, next := parseIf(lines, i)
			stmts = append(stmts, st)
			i = next
		case "for":
			st, next := parseFor(lines, i)
			stmts = append(stmts, st)
			i = next
		case "function":
			st, next := parseFunction(lines, i)
			stmts = append(stmts, st)
			i = next
		case "menuentry":
			st, next := parseMenuentry(lines, i)
			stmts = append(stmts, st)
			i = next
		default:
			if endsWithOpenBrace(line) {
				// Bare "{ ... }" block, or a continuation we
				// don't special-case; treat as an opaque block.
				body, next := parseStatements(lines, i+1)
				stmts = append(stmts, Block{Statements: body})
				i = next
				continue
			}
			stmts = append(stmts, Simple{Words: line.words})
			i++
		}
	}

	return stmts, i
}

func endsWithOpenBrace(line rawLine) bool {
	if len(line.words) == 0 {
		return false
	}
	last := line.words[len(line.words)-1]
	return last.kind == wordText && last.text == "{"
}

// parseIf parses an "if COND; then ... [elif COND; then ...]... [else
// ...] fi" chain. Each branch condition is kept as a Simple statement
// (its exit status drives the branch at evaluation time).
func parseIf(lines []rawLine, i int) (Statement, int) {
	node := If{}
	i++ // consume "if"

	for {
		var cond []Statement
		for i < len(lines) && lines[i].first != "then" {
			cond = append(cond, Simple{Words: lines[i].words})
			i++
		}
		if i < len(lines) {
			i++ // consume "then"
		}

		body, next := parseStatements(lines, i)
		i = next

		var condStmt Statement
		if len(cond) == 1 {
			condStmt = cond[0]
		} else {
			condStmt = Block{Statements: cond}
		}

		node.Conds = append(node.Conds, condStmt)
		node.Bodies = append(node.Bodies, Block{Statements: body})

		if i > 0 && i <= len(lines) {
			// parseStatements returned right after consuming the
			// terminator line; inspect it to see whether we
			// continue the chain.
			term := lines[i-1]
			switch term.first {
			case "elif":
				continue
			case "else":
				elseBody, next2 := parseStatements(lines, i)
				b := Block{Statements: elseBody}
				node.Else = &b
				return node, next2
			default:
				return node, i
			}
		}

		return node, i
	}
}

func parseFor(lines []rawLine, i int) (Statement, int) {
	header := lines[i]
	node := For{}

	// "for VAR in ITEM...; do"
	if len(header.words) >= 3 && header.words[1].kind == wordText {
		node.Var = header.words[1].text
	}

	inIdx := -1
	for idx, w := range header.words {
		if w.kind == wordText && w.text == "in" {
			inIdx = idx
			break
		}
	}
	if inIdx >= 0 && inIdx+1 < len(header.words) {
		node.Items = header.words[inIdx+1:]
	}

	body, next := parseStatements(lines, i+1)
	node.Body = Block{Statements: body}
	return node, next
}

func parseFunction(lines []rawLine, i int) (Statement, int) {
	header := lines[i]
	node := Function{}
	if len(header.words) >= 2 && header.words[1].kind == wordText {
		node.Name = header.words[1].text
	}

	body, next := parseStatements(lines, i+1)
	node.Body = Block{Statements: body}
	return node, next
}

func parseMenuentry(lines []rawLine, i int) (Statement, int) {
	header := lines[i]
	node := Menuentry{}

	if len(header.words) >= 2 && header.words[1].kind == wordText {
		node.Title = header.words[1].text
	}

	for _, w := range header.words {
		if w.kind == wordText && strings.HasPrefix(w.text, "--id=") {
			node.ID = strings.TrimPrefix(w.text, "--id=")
		}
	}

	body, next := parseStatements(lines, i+1)
	node.Body = Block{Statements: body}
	return node, next
}
