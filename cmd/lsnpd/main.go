// Command lsnpd runs one LSNP peer node: it binds a UDP socket, joins
// mDNS discovery, and offers a line-oriented REPL over stdin for every
// user-facing operation (spec.md §4.13).
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ImaginaryLogs/CSNETWK-MCO3/internal/controller"
	"github.com/ImaginaryLogs/CSNETWK-MCO3/internal/transport"
)

var (
	username     = flag.String("user", envOr("USER", "user"), "local username, combined with the bound IP as user@ip")
	port         = flag.Int("port", transport.DefaultPort, "UDP port to bind")
	displayName  = flag.String("display-name", "", "display name advertised in PROFILE")
	status       = flag.String("status", "Exploring LSNP!", "status line advertised in PROFILE")
	filesDir     = flag.String("files-dir", ".", "directory SENDFILE paths are resolved relative to")
	downloadsDir = flag.String("downloads-dir", "./downloads", "directory accepted transfers are written to")
	avatarPath   = flag.String("avatar", "", "path to a PNG/JPEG/GIF/BMP/WEBP avatar, under 20KB")
	verbose      = flag.Bool("verbose", false, "enable debug-level logging, including dropped-frame traces")
	postTTL      = flag.Duration("post-ttl", controller.DefaultPostTTL, "TTL attached to outbound POST frames")
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	flag.Parse()

	if *displayName == "" {
		*displayName = *username
	}
	if err := os.MkdirAll(*downloadsDir, 0o755); err != nil {
		log.Fatalf("E: creating downloads dir: %v", err)
	}

	c, err := controller.New(controller.Config{
		Username:     *username,
		Port:         *port,
		DisplayName:  *displayName,
		Status:       *status,
		FilesDir:     *filesDir,
		DownloadsDir: *downloadsDir,
		AvatarPath:   *avatarPath,
		Verbose:      *verbose,
		PostTTL:      *postTTL,
	})
	if err != nil {
		log.Fatalf("E: %v", err)
	}
	defer c.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c.Start(ctx)
	if err := c.BroadcastProfile(); err != nil {
		log.Printf("W: initial profile broadcast failed: %v", err)
	}

	fmt.Printf("I: [%s] listening on port %d\n", c.UserID(), *port)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		repl(gctx, c)
		return nil
	})

	_ = g.Wait()
}

// repl implements the CLI surface table: a line-oriented command set
// covering every operation exposed by the controller.
func repl(ctx context.Context, c *controllerFacade) {
	scanner := bufio.NewScanner(os.Stdin)
	lines := make(chan string)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if !dispatch(c, line) {
				return
			}
		}
	}
}

// controllerFacade lets repl/dispatch take *controller.Controller
// without repeating the import alias at every call site.
type controllerFacade = controller.Controller

func dispatch(c *controllerFacade, line string) bool {
	fields := strings.Fields(line)
	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case "quit", "exit":
		return false

	case "peers":
		for _, p := range c.Peers() {
			fmt.Printf("  %s (%s) last seen %s\n", p.UserID, p.DisplayName, p.LastSeen.Format(time.Kitchen))
		}

	case "dms":
		for _, line := range c.Inbox() {
			fmt.Println(line)
		}

	case "dm":
		if len(args) < 2 {
			fmt.Println("usage: dm <user> <message...>")
			return true
		}
		if err := c.SendDM(args[0], strings.Join(args[1:], " ")); err != nil {
			fmt.Printf("E: %v\n", err)
		}

	case "follow":
		if len(args) != 1 {
			fmt.Println("usage: follow <user>")
			return true
		}
		if err := c.Follow(args[0]); err != nil {
			fmt.Printf("E: %v\n", err)
		}

	case "unfollow":
		if len(args) != 1 {
			fmt.Println("usage: unfollow <user>")
			return true
		}
		if err := c.Unfollow(args[0]); err != nil {
			fmt.Printf("E: %v\n", err)
		}

	case "post":
		if len(args) < 1 {
			fmt.Println("usage: post <content...>")
			return true
		}
		n, err := c.SendPost(strings.Join(args, " "))
		if err != nil {
			fmt.Printf("E: %v\n", err)
			return true
		}
		fmt.Printf("I: post acked by %d follower(s)\n", n)

	case "like":
		if len(args) != 2 {
			fmt.Println("usage: like <user> <post-timestamp>")
			return true
		}
		if err := c.ToggleLike(args[0], args[1]); err != nil {
			fmt.Printf("E: %v\n", err)
		}

	case "sendfile":
		if len(args) < 2 {
			fmt.Println("usage: sendfile <user> <path> [description...]")
			return true
		}
		path := c.ResolvePath(args[1])
		info, err := os.Stat(path)
		if err != nil {
			fmt.Printf("E: %v\n", err)
			return true
		}
		description := strings.Join(args[2:], " ")
		fileID, err := c.OfferFile(args[0], path, description, mimeFor(path), info.Size())
		if err != nil {
			fmt.Printf("E: %v\n", err)
			return true
		}
		fmt.Printf("I: file offer %s sent\n", fileID)

	case "acceptfile":
		if len(args) != 1 {
			fmt.Println("usage: acceptfile <file-id>")
			return true
		}
		if err := c.AcceptFile(args[0]); err != nil {
			fmt.Printf("E: %v\n", err)
		}

	case "rejectfile":
		if len(args) != 1 {
			fmt.Println("usage: rejectfile <file-id>")
			return true
		}
		if err := c.RejectFile(args[0]); err != nil {
			fmt.Printf("E: %v\n", err)
		}

	case "pendingfiles":
		for _, t := range c.PendingOffers() {
			fmt.Printf("  %s from %s: %s\n", t.FileID, t.RemoteUser, t.Filename)
		}

	case "transfers":
		for _, t := range c.Transfers() {
			fmt.Printf("  %s %s %s -> %s (%s)\n", t.FileID, t.Direction, t.Filename, t.RemoteUser, t.CurrentStatus())
		}

	case "broadcast":
		if err := c.BroadcastProfile(); err != nil {
			fmt.Printf("E: %v\n", err)
		}

	case "ping":
		if err := c.Ping(); err != nil {
			fmt.Printf("E: %v\n", err)
		}

	case "verbose":
		fmt.Println("I: restart with -verbose to change log level")

	case "ipstats":
		stats := c.IPStats()
		fmt.Printf("  known=%d mapped=%d attempts=%d blocked=%d\n",
			stats.TotalKnownIPs, stats.MappedUsers, stats.TotalConnectionAttempts, stats.BlockedIPs)

	case "revoke":
		if len(args) != 1 {
			fmt.Println("usage: revoke <token>")
			return true
		}
		c.RevokeToken(args[0])

	case "group":
		dispatchGroup(c, args)

	case "game":
		dispatchGame(c, args)

	default:
		fmt.Printf("unknown command %q\n", cmd)
	}
	return true
}

func dispatchGroup(c *controllerFacade, args []string) {
	if len(args) < 1 {
		fmt.Println("usage: group create|add|remove|message ...")
		return
	}
	switch args[0] {
	case "create":
		if len(args) < 3 {
			fmt.Println("usage: group create <name> <member,member,...>")
			return
		}
		members := strings.Split(args[2], ",")
		id, err := c.GroupCreate(args[1], members)
		if err != nil {
			fmt.Printf("E: %v\n", err)
			return
		}
		fmt.Printf("I: group %s created\n", id)
	case "add":
		if len(args) < 3 {
			fmt.Println("usage: group add <group-id> <member,member,...>")
			return
		}
		if err := c.GroupAdd(args[1], strings.Split(args[2], ",")); err != nil {
			fmt.Printf("E: %v\n", err)
		}
	case "remove":
		if len(args) < 3 {
			fmt.Println("usage: group remove <group-id> <member,member,...>")
			return
		}
		if err := c.GroupRemove(args[1], strings.Split(args[2], ",")); err != nil {
			fmt.Printf("E: %v\n", err)
		}
	case "message":
		if len(args) < 3 {
			fmt.Println("usage: group message <group-id> <content...>")
			return
		}
		if err := c.GroupMessage(args[1], strings.Join(args[2:], " ")); err != nil {
			fmt.Printf("E: %v\n", err)
		}
	default:
		fmt.Printf("unknown group subcommand %q\n", args[0])
	}
}

func dispatchGame(c *controllerFacade, args []string) {
	if len(args) < 1 {
		fmt.Println("usage: game invite|move|forfeit ...")
		return
	}
	switch args[0] {
	case "invite":
		if len(args) != 3 {
			fmt.Println("usage: game invite <user> <X|O>")
			return
		}
		id, err := c.TicTacToeInvite(args[1], args[2][0])
		if err != nil {
			fmt.Printf("E: %v\n", err)
			return
		}
		fmt.Printf("I: game %s invite sent\n", id)
	case "move":
		if len(args) != 3 {
			fmt.Println("usage: game move <game-id> <position 0-8>")
			return
		}
		pos, err := strconv.Atoi(args[2])
		if err != nil {
			fmt.Printf("E: %v\n", err)
			return
		}
		if err := c.TicTacToeMove(args[1], pos); err != nil {
			fmt.Printf("E: %v\n", err)
		}
	case "forfeit":
		if len(args) != 2 {
			fmt.Println("usage: game forfeit <game-id>")
			return
		}
		if err := c.TicTacToeForfeit(args[1]); err != nil {
			fmt.Printf("E: %v\n", err)
		}
	default:
		fmt.Printf("unknown game subcommand %q\n", args[0])
	}
}

func mimeFor(path string) string {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	case strings.HasSuffix(lower, ".jpg"), strings.HasSuffix(lower, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(lower, ".gif"):
		return "image/gif"
	case strings.HasSuffix(lower, ".txt"):
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
