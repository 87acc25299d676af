package output

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/depspec/packages/core/descriptor"
	"github.com/abdul-hamid-achik/depspec/packages/core/orderer"
	"github.com/fatih/color"
)

// FormatPlan prints the execution order of a plan.
func (f *ConsoleFormatter) FormatPlan(source string, plan *orderer.Plan) error {
	bold := color.New(color.Bold).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()

	fmt.Fprintf(f.writer, "\n%s %s\n", bold("Plan: "+source), faint(fmt.Sprintf("(strategy: %s)", plan.Strategy)))

	for gi, gp := range plan.Groups {
		fmt.Fprintf(f.writer, "\n  %d. %s", gi+1, bold(string(gp.Group.ID)))
		if gp.Group.DisplayName != "" {
			fmt.Fprintf(f.writer, " %s", faint(gp.Group.DisplayName))
		}
		if len(gp.Group.DependsOn) > 0 {
			fmt.Fprintf(f.writer, " %s", cyan("← "+joinGroupIDs(gp.Group.DependsOn)))
		}
		fmt.Fprintf(f.writer, "\n")

		n := 0
		for _, td := range gp.Tests {
			if td.Skipped() {
				fmt.Fprintf(f.writer, "       %s %s %s\n", yellow("-"), td.Name, yellow("(skip: "+td.Skip+")"))
				continue
			}
			n++
			fmt.Fprintf(f.writer, "     %2d. %s", n, td.Name)
			if len(td.DependsOn) > 0 {
				fmt.Fprintf(f.writer, " %s", cyan("← "+strings.Join(td.DependsOn, ", ")))
			}
			if f.verbose && td.HasPriority() {
				fmt.Fprintf(f.writer, " %s", faint(fmt.Sprintf("[priority %d]", td.Priority())))
			}
			fmt.Fprintf(f.writer, "\n")
		}
	}

	if len(plan.Unresolved) > 0 || len(plan.Cycles) > 0 {
		fmt.Fprintf(f.writer, "\n%s\n", yellow("Warnings:"))
		for _, ref := range plan.Unresolved {
			fmt.Fprintf(f.writer, "  %s %s\n", yellow("unresolved:"), ref)
		}
		for _, cycle := range plan.Cycles {
			fmt.Fprintf(f.writer, "  %s %s\n", yellow("cycle:"), strings.Join(cycle, " -> "))
		}
	}

	fmt.Fprintf(f.writer, "\n%d groups, %d tests\n\n", len(plan.Groups), plan.Len())
	return nil
}

// JSONPlan is the JSON form of an execution plan.
type JSONPlan struct {
	Source     string              `json:"source"`
	Strategy   string              `json:"strategy"`
	Groups     []JSONPlanGroup     `json:"groups"`
	Levels     [][]string          `json:"levels"`
	Unresolved []JSONPlanReference `json:"unresolved,omitempty"`
	Cycles     [][]string          `json:"cycles,omitempty"`
}

// JSONPlanGroup is one planned group.
type JSONPlanGroup struct {
	ID        string         `json:"id"`
	Name      string         `json:"name,omitempty"`
	DependsOn []string       `json:"dependsOn,omitempty"`
	Tests     []JSONPlanTest `json:"tests"`
}

// JSONPlanTest is one planned test.
type JSONPlanTest struct {
	Name      string   `json:"name"`
	DependsOn []string `json:"dependsOn,omitempty"`
	Priority  int      `json:"priority"`
	Skip      string   `json:"skip,omitempty"`
}

// JSONPlanReference is an unresolved dependency.
type JSONPlanReference struct {
	Kind    string `json:"kind"`
	From    string `json:"from"`
	Target  string `json:"target"`
	Skipped bool   `json:"skipped,omitempty"`
}

// FormatPlan writes the plan as one JSON document.
func (f *JSONFormatter) FormatPlan(source string, plan *orderer.Plan) error {
	out := JSONPlan{
		Source:   source,
		Strategy: string(plan.Strategy),
		Groups:   make([]JSONPlanGroup, 0, len(plan.Groups)),
		Cycles:   plan.Cycles,
	}

	for _, gp := range plan.Groups {
		g := JSONPlanGroup{
			ID:        string(gp.Group.ID),
			Name:      gp.Group.DisplayName,
			DependsOn: groupIDStrings(gp.Group.DependsOn),
			Tests:     make([]JSONPlanTest, 0, len(gp.Tests)),
		}
		for _, td := range gp.Tests {
			g.Tests = append(g.Tests, JSONPlanTest{
				Name:      td.Name,
				DependsOn: td.Dependencies(),
				Priority:  td.Priority(),
				Skip:      td.Skip,
			})
		}
		out.Groups = append(out.Groups, g)
	}

	for _, level := range orderer.Levels(plan.GroupDescriptors()) {
		ids := make([]string, len(level))
		for i, g := range level {
			ids[i] = string(g.ID)
		}
		out.Levels = append(out.Levels, ids)
	}

	for _, ref := range plan.Unresolved {
		out.Unresolved = append(out.Unresolved, JSONPlanReference{
			Kind:    string(ref.Kind),
			From:    ref.From,
			Target:  ref.Target,
			Skipped: ref.Skipped,
		})
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func groupIDStrings(ids []descriptor.GroupID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func joinGroupIDs(ids []descriptor.GroupID) string {
	return strings.Join(groupIDStrings(ids), ", ")
}
