package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
)

var (
	primaryColor = lipgloss.Color("#ff4500")
	mutedColor   = lipgloss.Color("#888888")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffdd00")).
			MarginTop(1)

	flagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00ff00")).
			Bold(true)

	defaultStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	keyStyle   = lipgloss.NewStyle().Foreground(mutedColor)
	valueStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF"))
)

func printError(err error) {
	fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("Error:"), err)
}

// styledHelp lists the commands of the root node, or the flags of the
// selected command.
func styledHelp(options kong.HelpOptions, ctx *kong.Context) error {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("gainbridge"))
	sb.WriteString("\n")

	node := ctx.Model.Node
	if selected := ctx.Selected(); selected != nil {
		node = selected
	}

	sb.WriteString(sectionStyle.Render("Usage:"))
	sb.WriteString("\n  ")
	if node == ctx.Model.Node {
		sb.WriteString(ctx.Model.Name + " <command> [flags]\n")
	} else {
		sb.WriteString(ctx.Model.Name + " " + node.Name + " [flags]\n")
		if node.Help != "" {
			sb.WriteString("  " + node.Help + "\n")
		}
	}

	if node == ctx.Model.Node && len(node.Children) > 0 {
		sb.WriteString("\n")
		sb.WriteString(sectionStyle.Render("Commands:"))
		sb.WriteString("\n")
		for _, child := range node.Children {
			sb.WriteString("  ")
			sb.WriteString(flagStyle.Render(fmt.Sprintf("%-8s", child.Name)))
			sb.WriteString("  " + child.Help + "\n")
		}
	}

	flags := collectFlags(ctx.Model.Node)
	if node != ctx.Model.Node {
		flags = append(flags, collectFlags(node)...)
	}
	if len(flags) > 0 {
		sb.WriteString("\n")
		sb.WriteString(sectionStyle.Render("Flags:"))
		sb.WriteString("\n")
		for _, f := range flags {
			sb.WriteString("  ")
			sb.WriteString(flagStyle.Render(f.flags))
			if f.help != "" {
				sb.WriteString("  " + f.help)
			}
			if f.defaultVal != "" {
				sb.WriteString(" " + defaultStyle.Render("(default: "+f.defaultVal+")"))
			}
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\n")
	fmt.Fprint(ctx.Stdout, sb.String())
	return nil
}

type helpFlag struct {
	flags      string
	help       string
	defaultVal string
}

func collectFlags(node *kong.Node) []helpFlag {
	var out []helpFlag
	for _, f := range node.Flags {
		if f.Name == "help" || f.Hidden {
			continue
		}
		name := "--" + f.Name
		if f.Short != 0 {
			name = fmt.Sprintf("-%c, --%s", f.Short, f.Name)
		}
		out = append(out, helpFlag{flags: name, help: f.Help, defaultVal: f.Default})
	}
	return out
}

func printDevice(name, host string, inputs, outputs int, sampleRate float64, marker string) {
	fmt.Printf("%s %s %s\n    %s %d  %s %d  %s %.0f Hz\n",
		valueStyle.Render(name), keyStyle.Render("["+host+"]"), marker,
		keyStyle.Render("inputs:"), inputs,
		keyStyle.Render("outputs:"), outputs,
		keyStyle.Render("rate:"), sampleRate)
}
