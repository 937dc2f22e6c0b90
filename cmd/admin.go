package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alanwang67/activation_registry/client"
	"github.com/alanwang67/activation_registry/idl"
	"github.com/alanwang67/activation_registry/registry"
)

// withClient runs fn against a connected client under --timeout.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *client.Client) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	c, err := dial(ctx)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(ctx, c)
}

// idCommand builds a command taking a single server ID argument.
func idCommand(use, short string, fn func(ctx context.Context, c *client.Client, cmd *cobra.Command, id registry.ServerID) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <server-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				return fn(ctx, c, cmd, id)
			})
		},
	}
}

func newAdminCmds() []*cobra.Command {
	var (
		def   idl.ServerDef
		pinID int32
	)
	registerCmd := &cobra.Command{
		Use:   "register",
		Short: "Register a server definition",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				var (
					id  registry.ServerID
					err error
				)
				if cmd.Flags().Changed("id") {
					id, err = c.RegisterServerWithID(ctx, def, registry.ServerID(pinID))
				} else {
					id, err = c.RegisterServer(ctx, def)
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}
	registerCmd.Flags().StringVar(&def.ApplicationName, "name", "", "Application name")
	registerCmd.Flags().StringVar(&def.ServerName, "server-name", "", "Server name")
	registerCmd.Flags().StringVar(&def.ServerClassPath, "class-path", "", "Executable that starts the server")
	registerCmd.Flags().StringVar(&def.ServerArgs, "args", "", "Server arguments")
	registerCmd.Flags().StringVar(&def.ServerVMArgs, "vm-args", "", "Runtime arguments")
	registerCmd.Flags().Int32Var(&pinID, "id", -1, "Register under this ID without verification")
	registerCmd.MarkFlagRequired("name")

	unregisterCmd := idCommand("unregister", "Remove a server", func(ctx context.Context, c *client.Client, cmd *cobra.Command, id registry.ServerID) error {
		return c.UnregisterServer(ctx, id)
	})
	getCmd := idCommand("get", "Show a server definition", func(ctx context.Context, c *client.Client, cmd *cobra.Command, id registry.ServerID) error {
		def, err := c.GetServer(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), def)
		return nil
	})
	installedCmd := idCommand("installed", "Report whether a server is installed", func(ctx context.Context, c *client.Client, cmd *cobra.Command, id registry.ServerID) error {
		installed, err := c.IsInstalled(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), installed)
		return nil
	})
	installCmd := idCommand("install", "Mark a server installed", func(ctx context.Context, c *client.Client, cmd *cobra.Command, id registry.ServerID) error {
		return c.Install(ctx, id)
	})
	uninstallCmd := idCommand("uninstall", "Mark a server uninstalled", func(ctx context.Context, c *client.Client, cmd *cobra.Command, id registry.ServerID) error {
		return c.Uninstall(ctx, id)
	})

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered server IDs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				ids, err := c.ListServers(ctx)
				if err != nil {
					return err
				}
				for _, id := range ids {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			})
		},
	}
	namesCmd := &cobra.Command{
		Use:   "names",
		Short: "List registered application names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				names, err := c.ListApplicationNames(ctx)
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			})
		},
	}
	idCmd := &cobra.Command{
		Use:   "id <application-name>",
		Short: "Look up the server ID for an application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				id, err := c.GetServerID(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}

	return []*cobra.Command{
		registerCmd, unregisterCmd, getCmd, installedCmd, installCmd, uninstallCmd,
		listCmd, namesCmd, idCmd,
	}
}
