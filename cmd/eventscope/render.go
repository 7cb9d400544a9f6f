package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"

	"eventScope/internal/model"
)

func renderEvents(w io.Writer, events []model.LogEvent) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Block", "Event", "Args", "Time", "Tx"})
	table.SetAutoWrapText(false)

	for _, event := range events {
		table.Append([]string{
			fmt.Sprintf("%d", event.BlockNumber),
			event.Event,
			formatArgs(event.Args),
			event.Timestamp,
			event.TxHash,
		})
	}
	table.Render()
}

// renderRoles prints every actor/role pair followed by the current holders of
// each role.
func renderRoles(w io.Writer, roles model.RoleState) {
	pairs := tablewriter.NewWriter(w)
	pairs.SetHeader([]string{"Actor", "Role", "Member"})

	var names []string
	seen := make(map[string]bool)
	for _, m := range roles.Flatten() {
		pairs.Append([]string{m.Actor, m.Role, fmt.Sprintf("%t", m.Member)})
		if !seen[m.Role] {
			seen[m.Role] = true
			names = append(names, m.Role)
		}
	}
	pairs.Render()

	if len(names) == 0 {
		return
	}
	sort.Strings(names)

	holders := tablewriter.NewWriter(w)
	holders.SetHeader([]string{"Role", "Members"})
	holders.SetAutoWrapText(false)
	for _, role := range names {
		holders.Append([]string{role, joinOrNone(roles.Members(role))})
	}
	holders.Render()
}

func formatArgs(args []model.Arg) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		value := arg.Value
		if arg.Display != "" {
			value = arg.Display
		}
		parts = append(parts, arg.Name+"="+value)
	}
	return strings.Join(parts, " ")
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
