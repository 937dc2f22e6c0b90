package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alanwang67/activation_registry/giop"
)

func newGIOPCmd() *cobra.Command {
	giopCmd := &cobra.Command{
		Use:   "giop",
		Short: "Encode and inspect GIOP control messages",
	}

	cancelCmd := &cobra.Command{
		Use:   "cancel <request-id>",
		Short: "Print the hex encoding of a Cancel-Request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 0, 32)
			if err != nil {
				return fmt.Errorf("trouble converting %s to a request id: %w", args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(giop.EncodeCancelRequest(uint32(id))))
			return nil
		},
	}

	decodeCmd := &cobra.Command{
		Use:   "decode <hex>",
		Short: "Decode a hex-encoded GIOP message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return describeMessage(cmd.OutOrStdout(), args[0])
		},
	}

	giopCmd.AddCommand(cancelCmd, decodeCmd)
	return giopCmd
}

func describeMessage(w io.Writer, hexMsg string) error {
	raw, err := hex.DecodeString(strings.Join(strings.Fields(hexMsg), ""))
	if err != nil {
		return fmt.Errorf("decode hex: %w", err)
	}
	h, msg, err := giop.Decode(raw)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "GIOP %d.%d %s order=%s fragments=%t size=%d\n",
		h.Version.Major, h.Version.Minor, h.Type, h.Order(), h.MoreFragments(), h.Size)
	if cr, ok := msg.(*giop.CancelRequest); ok {
		fmt.Fprintf(w, "request_id=%d\n", cr.RequestID)
	}
	return nil
}
