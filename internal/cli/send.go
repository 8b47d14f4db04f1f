package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tinywideclouds/go-gcm-service/pkg/gcm"
)

type sendOptions struct {
	apiKey    string
	endpoint  string
	timeout   time.Duration
	to        []string
	multicast bool

	notification gcm.Notification
	data         []string

	collapseKey       string
	ttl               int
	delayWhileIdle    bool
	restrictedPackage string
	dryRun            bool

	decode  bool
	verbose bool
}

func newSendCmd() *cobra.Command {
	opts := sendOptions{ttl: -1}

	cmd := &cobra.Command{
		Use:   "send --to <registration-id> --title <title> [flags]",
		Short: "Send one message",
		Long: "Send one notification to one or more registration IDs and print the gateway response body.\n" +
			"The API key is read from --api-key or the GCM_API_KEY environment variable.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.apiKey == "" {
				opts.apiKey = os.Getenv("GCM_API_KEY")
			}
			return runSend(cmd, &opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.apiKey, "api-key", "", "server API key (default $GCM_API_KEY)")
	f.StringVar(&opts.endpoint, "endpoint", gcm.DefaultEndpoint, "gateway URL")
	f.DurationVar(&opts.timeout, "timeout", gcm.DefaultTimeout, "request timeout")
	f.StringArrayVar(&opts.to, "to", nil, "registration ID (repeatable)")
	f.BoolVar(&opts.multicast, "multicast", false, "use registration_ids even for a single recipient")

	f.StringVar(&opts.notification.Title, "title", "", "notification title")
	f.StringVar(&opts.notification.Body, "body", "", "notification body")
	f.StringVar(&opts.notification.Icon, "icon", "", "notification icon")
	f.StringVar(&opts.notification.Sound, "sound", "", "notification sound")
	f.StringVar(&opts.notification.Tag, "tag", "", "notification tag")
	f.StringVar(&opts.notification.Color, "color", "", "notification color (#rrggbb)")
	f.StringVar(&opts.notification.ClickAction, "click-action", "", "activity to open on click")
	f.StringArrayVar(&opts.data, "data", nil, "data payload entry as key=value (repeatable)")

	f.StringVar(&opts.collapseKey, "collapse-key", "", "collapse key")
	f.IntVar(&opts.ttl, "ttl", -1, "time to live in seconds (-1 leaves the gateway default)")
	f.BoolVar(&opts.delayWhileIdle, "delay-while-idle", false, "wait until the device is active")
	f.StringVar(&opts.restrictedPackage, "restricted-package", "", "only deliver to this package name")
	f.BoolVar(&opts.dryRun, "dry-run", false, "ask the gateway to validate without delivering")

	f.BoolVar(&opts.decode, "decode", false, "print a per-recipient summary instead of the raw body")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "log the request to stderr")

	return cmd
}

func runSend(cmd *cobra.Command, opts *sendOptions) error {
	msg, err := opts.message()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if opts.verbose {
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	client := gcm.NewClient(opts.apiKey,
		gcm.WithEndpoint(opts.endpoint),
		gcm.WithTimeout(opts.timeout),
		gcm.WithLogger(logger),
	)

	resp, err := client.Send(cmd.Context(), msg)
	var verr *gcm.ValidationError
	if errors.As(err, &verr) {
		for _, e := range verr.Errors {
			cmd.PrintErrln("invalid message:", e)
		}
		return err
	}
	var serr *gcm.StatusError
	if errors.As(err, &serr) && serr.Body != "" {
		cmd.PrintErrln(serr.Body)
	}
	if err != nil {
		return err
	}

	if !opts.decode {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), resp.Body())
		return err
	}

	result, err := resp.Decode()
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result.Classify(msg.To().IDs()))
}

func (o *sendOptions) message() (*gcm.Message, error) {
	var to gcm.Recipients
	switch {
	case len(o.to) == 1 && !o.multicast:
		to = gcm.Single(o.to[0])
	default:
		to = gcm.Multiple(o.to...)
	}

	n := o.notification
	msg := gcm.NewMessage(&n, to)
	msg.CollapseKey = o.collapseKey
	msg.DelayWhileIdle = o.delayWhileIdle
	msg.RestrictedPackageName = o.restrictedPackage
	msg.DryRun = o.dryRun
	if o.ttl >= 0 {
		msg.SetTimeToLive(o.ttl)
	}

	if len(o.data) > 0 {
		msg.Data = make(map[string]any, len(o.data))
		for _, kv := range o.data {
			k, v, ok := strings.Cut(kv, "=")
			if !ok || k == "" {
				return nil, fmt.Errorf("invalid --data %q: want key=value", kv)
			}
			msg.Data[k] = v
		}
	}
	return msg, nil
}
