// Package shared provides the CLI flag definitions, argument parsers and
// helpers common to ledticker's commands.
package shared

import (
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"ninjametal/ledticker/pkg/config"
	"ninjametal/ledticker/pkg/log"
)

const categoryCommon = "common"

// VerboseFlag is the name of the flag to enable verbose logging.
const VerboseFlag = "verbose"

// TimeoutFlag is the name of the flag bounding how long to wait for data on
// an open connection.
const TimeoutFlag = "timeout"

// CAFlag is the name of the flag to add trust anchors from a PEM file.
const CAFlag = "ca"

// GetBaseDescription returns the description shared by commands talking to
// a ticker server.
func GetBaseDescription() string {
	return strings.Join([]string{
		"Specify the server like this: wss://ninjametal.com/ws/ledpanel (port defaults to 443).",
		"The device has no resolver: the address is looked up once on the host, or given with --ip.",
	}, "\n")
}

// GetArgsUsage returns the arguments usage string for server commands.
func GetArgsUsage() string {
	return "url"
}

// GetCommonFlags returns the flags every command accepts.
func GetCommonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:     VerboseFlag,
			Aliases:  []string{"v"},
			Usage:    "Verbose logging",
			Category: categoryCommon,
			Value:    false,
			Required: false,
		},
	}
}

const categoryConnect = "connect"

// Connect flag names.
const (
	IPFlag         = "ip"
	OriginFlag     = "origin"
	NTPFlag        = "ntp"
	SeedFlag       = "seed"
	WidthFlag      = "width"
	StepFlag       = "step"
	TraceFlag      = "trace"
	RetriesFlag    = "retries"
	RetryDelayFlag = "retry-delay"
	SubProtoFlag   = "subprotocol"
	LocalIPFlag    = "local-ip"
	GatewayFlag    = "gateway"
	SubnetFlag     = "subnet"
	MACFlag        = "mac"
)

// GetConnectFlags returns the flags of the ticker client.
func GetConnectFlags() []cli.Flag {
	def := config.DefaultClient()

	return []cli.Flag{
		&cli.StringFlag{
			Name:     IPFlag,
			Usage:    "Server IPv4 address, looked up from the URL host if empty",
			Category: categoryConnect,
		},
		&cli.StringFlag{
			Name:     OriginFlag,
			Usage:    "Origin header, defaults to https://<host>",
			Category: categoryConnect,
		},
		&cli.StringFlag{
			Name:     NTPFlag,
			Usage:    "NTP server IPv4 address",
			Category: categoryConnect,
			Value:    def.NTP.Server.String(),
		},
		&cli.StringFlag{
			Name:     CAFlag,
			Usage:    "PEM file with extra trust anchors, e.g. the CA written by 'relay --ca-out'",
			Category: categoryConnect,
		},
		&cli.StringFlag{
			Name:     SeedFlag,
			Usage:    "Fixed entropy seed (INSECURE, reproducible sessions for debugging)",
			Category: categoryConnect,
		},
		&cli.IntFlag{
			Name:     WidthFlag,
			Aliases:  []string{"w"},
			Usage:    "Display width in columns, 0 fits the terminal",
			Category: categoryConnect,
			Value:    0,
		},
		&cli.DurationFlag{
			Name:     StepFlag,
			Usage:    "Time per scroll step",
			Category: categoryConnect,
			Value:    40 * time.Millisecond,
		},
		&cli.StringFlag{
			Name:     TraceFlag,
			Usage:    "Hex dump the encrypted stream to this file",
			Category: categoryConnect,
		},
		&cli.IntFlag{
			Name:     RetriesFlag,
			Usage:    "Connection attempts, 0 retries forever",
			Category: categoryConnect,
			Value:    0,
		},
		&cli.DurationFlag{
			Name:     RetryDelayFlag,
			Usage:    "Pause between connection attempts",
			Category: categoryConnect,
			Value:    def.RetryDelay,
		},
		&cli.DurationFlag{
			Name:     TimeoutFlag,
			Aliases:  []string{"t"},
			Usage:    "How long to wait for data on an open connection",
			Category: categoryConnect,
			Value:    def.Read.Budget(),
		},
		&cli.StringSliceFlag{
			Name:     SubProtoFlag,
			Usage:    "WebSocket subprotocol to offer, may be repeated",
			Category: categoryConnect,
		},
		&cli.StringFlag{
			Name:     LocalIPFlag,
			Usage:    "Device IPv4 address",
			Category: categoryConnect,
			Value:    def.Network.IP.String(),
		},
		&cli.StringFlag{
			Name:     GatewayFlag,
			Usage:    "Gateway IPv4 address",
			Category: categoryConnect,
			Value:    def.Network.Gateway.String(),
		},
		&cli.StringFlag{
			Name:     SubnetFlag,
			Usage:    "Subnet mask",
			Category: categoryConnect,
			Value:    def.Network.Subnet.String(),
		},
		&cli.StringFlag{
			Name:     MACFlag,
			Usage:    "Device MAC address",
			Category: categoryConnect,
			Value:    def.Network.MAC.String(),
		},
	}
}

const categoryTime = "time"

// GetTimeFlags returns the flags of the time query.
func GetTimeFlags() []cli.Flag {
	def := config.DefaultClient()

	return []cli.Flag{
		&cli.StringFlag{
			Name:     NTPFlag,
			Usage:    "NTP server IPv4 address",
			Category: categoryTime,
			Value:    def.NTP.Server.String(),
		},
		&cli.DurationFlag{
			Name:     TimeoutFlag,
			Aliases:  []string{"t"},
			Usage:    "How long to wait for the reply",
			Category: categoryTime,
			Value:    def.NTP.Poll.Budget(),
		},
	}
}

const categoryRelay = "relay"

// Relay flag names.
const (
	SSLFlag      = "ssl"
	CAOutFlag    = "ca-out"
	RoomFlag     = "room"
	CertHostFlag = "cert-host"
	MaxConnsFlag = "max-conns"
)

// GetRelayFlags returns the flags of the development relay.
func GetRelayFlags() []cli.Flag {
	def := config.DefaultRelay()

	return []cli.Flag{
		&cli.BoolFlag{
			Name:     SSLFlag,
			Aliases:  []string{"s"},
			Usage:    "Serve wss with a throwaway CA",
			Category: categoryRelay,
			Value:    false,
		},
		&cli.StringFlag{
			Name:     CAOutFlag,
			Usage:    "Write the generated CA certificate (PEM) here, requires --ssl",
			Category: categoryRelay,
		},
		&cli.StringSliceFlag{
			Name:     RoomFlag,
			Aliases:  []string{"r"},
			Usage:    "Room to serve, may be repeated",
			Category: categoryRelay,
			Value:    def.Rooms,
		},
		&cli.StringSliceFlag{
			Name:     CertHostFlag,
			Usage:    "Host name or IP in the generated certificate, may be repeated",
			Category: categoryRelay,
			Value:    def.CertHosts,
		},
		&cli.IntFlag{
			Name:     MaxConnsFlag,
			Usage:    "Maximum concurrent members",
			Category: categoryRelay,
			Value:    int64(def.MaxConns),
		},
	}
}

const categorySay = "say"

// NameFlag is the name of the flag setting the chat name.
const NameFlag = "name"

// GetSayFlags returns the flags of the chat poster.
func GetSayFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     NameFlag,
			Aliases:  []string{"n"},
			Usage:    "Name to post under",
			Category: categorySay,
		},
		&cli.StringFlag{
			Name:     CAFlag,
			Usage:    "PEM file with the relay CA, the certificate is not checked without it",
			Category: categorySay,
		},
	}
}

// ReportValidation logs every validation error and returns a summary error,
// or nil if there are none.
func ReportValidation(errors []error) error {
	if len(errors) == 0 {
		return nil
	}

	log.ErrorMsg("Argument validation errors:\n")
	for _, err := range errors {
		log.ErrorMsg(" - %s\n", err)
	}
	return fmt.Errorf("exiting")
}
