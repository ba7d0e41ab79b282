package dockerfile

import (
	"fmt"
	"strconv"
	"strings"
)

var knownInstructions = map[string]bool{
	"FROM": true, "RUN": true, "CMD": true, "LABEL": true, "EXPOSE": true,
	"ENV": true, "ADD": true, "COPY": true, "ENTRYPOINT": true, "VOLUME": true,
	"USER": true, "WORKDIR": true, "ARG": true, "ONBUILD": true,
	"STOPSIGNAL": true, "HEALTHCHECK": true, "SHELL": true,
}

// Lint runs static checks on Dockerfile text: instructions must be known,
// FROM must come first (ARG is allowed before it), and COPY --from must
// reference a stage that exists or an external image.
func Lint(content []byte) error {
	instructions := logicalLines(string(content))
	if len(instructions) == 0 {
		return fmt.Errorf("dockerfile has no instructions")
	}

	stages := make(map[string]bool)
	stageCount := 0
	sawFrom := false

	for _, line := range instructions {
		fields := strings.Fields(line)
		keyword := strings.ToUpper(fields[0])

		if !knownInstructions[keyword] {
			return fmt.Errorf("unknown dockerfile instruction %q", fields[0])
		}

		if !sawFrom && keyword != "FROM" && keyword != "ARG" {
			return fmt.Errorf("dockerfile must start with FROM, found %s", keyword)
		}

		switch keyword {
		case "FROM":
			sawFrom = true
			stageCount++
			// FROM <image> [AS <name>]
			for i := 1; i < len(fields)-1; i++ {
				if strings.EqualFold(fields[i], "AS") {
					stages[fields[i+1]] = true
				}
			}
		case "COPY", "ADD":
			for _, field := range fields[1:] {
				ref, ok := strings.CutPrefix(field, "--from=")
				if !ok {
					continue
				}
				if err := checkStageRef(ref, stages, stageCount); err != nil {
					return err
				}
			}
		}
	}

	if !sawFrom {
		return fmt.Errorf("dockerfile has no FROM instruction")
	}

	return nil
}

func checkStageRef(ref string, stages map[string]bool, stageCount int) error {
	if stages[ref] {
		return nil
	}

	// Numeric references point at earlier stages by index
	if idx, err := strconv.Atoi(ref); err == nil {
		if idx < 0 || idx >= stageCount-1 {
			return fmt.Errorf("COPY --from=%d references a stage that does not exist yet", idx)
		}
		return nil
	}

	// Anything with a registry path or tag is an external image
	if strings.ContainsAny(ref, "/:") {
		return nil
	}

	return fmt.Errorf("COPY --from=%s references an unknown build stage", ref)
}

// logicalLines splits Dockerfile text into instructions, folding line
// continuations and dropping blanks and comments
func logicalLines(content string) []string {
	var out []string
	var current strings.Builder

	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if trimmed, ok := strings.CutSuffix(line, "\\"); ok {
			current.WriteString(trimmed)
			current.WriteString(" ")
			continue
		}

		current.WriteString(line)
		out = append(out, current.String())
		current.Reset()
	}

	if current.Len() > 0 {
		out = append(out, current.String())
	}

	return out
}
