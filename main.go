package main

import (
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/alexcesaro/log"
	"github.com/alexcesaro/log/golog"
	flags "github.com/jessevdk/go-flags"
	"github.com/vipnode/peerrpc/kvstore"
	"github.com/vipnode/peerrpc/peer"
	"github.com/vipnode/peerrpc/pubsub"
)

// Version of the binary, assigned during build.
var Version string = "dev"

var rpcTimeout = time.Second * 5

// Options contains the flag options
type Options struct {
	Verbose []bool `short:"v" long:"verbose" description:"Show verbose logging."`
	Version bool   `long:"version" description:"Print version and exit."`

	Serve struct {
		Bind        string `long:"bind" description:"Address and port to listen on." default:"127.0.0.1:8080"`
		Store       string `long:"store" description:"Storage driver. (badger|memory)" default:"badger"`
		DataDir     string `long:"datadir" description:"Path for storing the persistent database."`
		AllowOrigin string `long:"allow-origin" description:"Include Access-Control-Allow-Origin header for CORS."`
	} `command:"serve" description:"Serve a key/value store over websockets."`

	Get struct {
		URL  string `long:"url" description:"Websocket URL of the server." default:"ws://127.0.0.1:8080/"`
		Args struct {
			Key string `positional-arg-name:"key" required:"yes"`
		} `positional-args:"yes"`
	} `command:"get" description:"Print the value of a key."`

	Set struct {
		URL  string `long:"url" description:"Websocket URL of the server." default:"ws://127.0.0.1:8080/"`
		Args struct {
			Key   string `positional-arg-name:"key" required:"yes"`
			Value string `positional-arg-name:"value" required:"yes"`
		} `positional-args:"yes"`
	} `command:"set" description:"Set the value of a key."`

	Watch struct {
		URL  string `long:"url" description:"Websocket URL of the server." default:"ws://127.0.0.1:8080/"`
		Args struct {
			Prefix string `positional-arg-name:"prefix"`
		} `positional-args:"yes"`
	} `command:"watch" description:"Print changes to keys with a prefix until interrupted."`
}

const watchUsage = `Examples:
* Watch every key on a local server:
  $ peerrpc watch

* Watch keys under "user/" on a remote server:
  $ peerrpc watch --url="ws://example.com:8080/" "user/"
`

var logLevels = []log.Level{
	log.Warning,
	log.Info,
	log.Debug,
}

func subcommand(cmd string, options Options) error {
	switch cmd {
	case "serve":
		return runServe(options)
	case "get":
		return runGet(options)
	case "set":
		return runSet(options)
	case "watch":
		return runWatch(options)
	}
	return fmt.Errorf("unknown command: %s", cmd)
}

func main() {
	options := Options{}
	parser := flags.NewParser(&options, flags.Default)
	parser.SubcommandsOptional = true
	p, err := parser.Parse()
	if err != nil {
		if p == nil {
			fmt.Println(err)
		}
		if flagErr, ok := err.(*flags.Error); ok && flagErr.Type == flags.ErrHelp && parser.Active != nil {
			// Print additional usage help when run with --help
			switch parser.Active.Name {
			case "watch":
				exit(0, watchUsage)
			}
		}
		return
	}

	if options.Version {
		fmt.Println(Version)
		os.Exit(0)
	}

	// Figure out the log level
	numVerbose := len(options.Verbose)
	if numVerbose >= len(logLevels) {
		numVerbose = len(logLevels) - 1
	}

	logLevel := logLevels[numVerbose]
	logWriter := os.Stderr

	SetLogger(golog.New(logWriter, logLevel))
	if logLevel == log.Debug {
		// Enable logging from subpackages
		peer.SetLogger(logWriter)
		pubsub.SetLogger(logWriter)
		kvstore.SetLogger(logWriter)
	}

	if parser.Active == nil {
		parser.WriteHelp(os.Stderr)
		exit(1, "\nmissing command\n")
	}
	cmd := parser.Active.Name
	err = subcommand(cmd, options)
	if err == nil {
		return
	}

	if err == io.EOF {
		exit(3, "Connection closed.\n")
	}

	switch err.(type) {
	case net.Error:
		err = ErrExplain{err, `Disconnected from server unexpectedly. Could be a connectivity issue or the server is down. Try again?`}
	case *peer.RemoteError:
		err = ErrExplain{err, `The server failed to handle the request. Run with -vvv for details.`}
	case ErrExplain:
		// All good.
	default:
		if err == kvstore.ErrNotFound {
			err = ErrExplain{err, `The key does not exist on the server.`}
			break
		}
		err = ErrExplain{err, fmt.Sprintf(`Error type %T is missing an explanation. Please open an issue at https://github.com/vipnode/peerrpc`, err)}
	}

	exit(2, "%s failed: %s\n", cmd, err)
}

func exit(code int, format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(code)
}

// ErrExplain annotates an error with an explanation.
type ErrExplain struct {
	Cause       error
	Explanation string
}

func (err ErrExplain) Error() string {
	return fmt.Sprintf("%s\n -> %s", err.Cause, err.Explanation)
}
