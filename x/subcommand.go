/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package x

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// SubCommand bundles a cobra command with the viper instance its flags are bound to.
type SubCommand struct {
	Cmd  *cobra.Command
	Conf *viper.Viper

	EnvPrefix string
}

// NonRootTemplate is the help template used by every subcommand.
const NonRootTemplate = `{{.Long}}

Usage:{{if .Runnable}}
  {{.UseLine}}{{end}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}{{if gt (len .Aliases) 0}}

Aliases:
  {{.NameAndAliases}}{{end}}{{if .HasAvailableLocalFlags}}

Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}

`

// GetStringP returns the string value of name, falling back to shorthand and then def.
func (s SubCommand) GetStringP(name, shorthand, def string) string {
	if ok := s.Conf.IsSet(name); ok {
		return s.Conf.GetString(name)
	}
	if ok := s.Conf.IsSet(shorthand); ok {
		return s.Conf.GetString(shorthand)
	}
	return def
}

// GetBoolP returns the bool value of name, falling back to shorthand and then def.
func (s SubCommand) GetBoolP(name, shorthand string, def bool) bool {
	if ok := s.Conf.IsSet(name); ok {
		return s.Conf.GetBool(name)
	}
	if ok := s.Conf.IsSet(shorthand); ok {
		return s.Conf.GetBool(shorthand)
	}
	return def
}
