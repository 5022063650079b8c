// Package main provides the status CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	"github.com/osa030/vitality/internal/api/status"
)

var (
	app    = kingpin.New("vitality-statuscli", "Vitality bot status client")
	server = app.Flag("server", "Status server address").Default("http://localhost:3000").String()
	token  = app.Flag("token", "Admin token (or set STATUS_TOKEN env)").Envar("STATUS_TOKEN").String()

	// players command
	playersCmd = app.Command("players", "List active players").Alias("list")

	// player command
	playerCmd   = app.Command("player", "Show a guild's player and queue")
	playerGuild = playerCmd.Arg("guild-id", "Guild ID").Required().String()

	// admin commands
	pauseCmd    = app.Command("pause", "Pause a guild's player")
	pauseGuild  = pauseCmd.Arg("guild-id", "Guild ID").Required().String()
	resumeCmd   = app.Command("resume", "Resume a guild's player")
	resumeGuild = resumeCmd.Arg("guild-id", "Guild ID").Required().String()
	skipCmd     = app.Command("skip", "Skip the current track of a guild")
	skipGuild   = skipCmd.Arg("guild-id", "Guild ID").Required().String()
	stopCmd     = app.Command("stop", "Stop a guild's player and leave voice")
	stopGuild   = stopCmd.Arg("guild-id", "Guild ID").Required().String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	client := status.NewClient(nil, *server, *token)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch command {
	case playersCmd.FullCommand():
		players(ctx, client)
	case playerCmd.FullCommand():
		player(ctx, client, *playerGuild)
	case pauseCmd.FullCommand():
		action(ctx, client, *pauseGuild, "pause")
	case resumeCmd.FullCommand():
		action(ctx, client, *resumeGuild, "resume")
	case skipCmd.FullCommand():
		action(ctx, client, *skipGuild, "skip")
	case stopCmd.FullCommand():
		action(ctx, client, *stopGuild, "stop")
	}
}

func players(ctx context.Context, client *status.Client) {
	list, err := client.Players(ctx)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if len(list) == 0 {
		fmt.Println("No active players")
		return
	}

	fmt.Printf("%-20s %-24s %-8s %-6s %-6s %s\n", "GUILD ID", "GUILD", "STATE", "QUEUE", "VOLUME", "NOW PLAYING")
	for _, p := range list {
		nowPlaying := "-"
		if p.NowPlaying != nil {
			nowPlaying = p.NowPlaying.Title
		}
		fmt.Printf("%-20s %-24s %-8s %-6d %-6d %s\n", p.GuildID, p.GuildName, p.State, p.QueueLength, p.Volume, nowPlaying)
	}
}

func player(ctx context.Context, client *status.Client, guildID string) {
	p, err := client.Player(ctx, guildID)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\n=== PLAYER STATUS ===")
	fmt.Printf("Guild: %s (%s)\n", p.GuildName, p.GuildID)
	fmt.Printf("Voice Channel: %s (%s)\n", p.VoiceChannel, p.VoiceChannelID)
	fmt.Printf("Text Channel ID: %s\n", p.TextChannelID)
	fmt.Printf("State: %s\n", p.State)
	fmt.Printf("Loop: %s\n", p.Loop)
	fmt.Printf("Volume: %d%%\n", p.Volume)
	fmt.Printf("Since: %s\n", p.CreatedAt.Local().Format(time.DateTime))

	if p.NowPlaying != nil {
		fmt.Println("\nCurrently Playing:")
		printTrack("  ", *p.NowPlaying)
	} else {
		fmt.Println("\nNo track currently playing")
	}

	fmt.Printf("\nQueue (%d):\n", p.QueueLength)
	for i, t := range p.Queue {
		fmt.Printf("  %d. %s - %s [%s]", i+1, t.Title, t.Author, t.Length)
		if t.RequestedBy != "" {
			fmt.Printf(" requested by %s", t.RequestedBy)
		}
		fmt.Println()
	}
	fmt.Println()
}

func printTrack(indent string, t status.TrackView) {
	fmt.Printf("%sTitle: %s\n", indent, t.Title)
	fmt.Printf("%sArtist: %s\n", indent, t.Author)
	fmt.Printf("%sLength: %s\n", indent, t.Length)
	if t.URI != "" {
		fmt.Printf("%sURL: %s\n", indent, t.URI)
	}
	if t.RequestedBy != "" {
		fmt.Printf("%sRequested by: %s\n", indent, t.RequestedBy)
	}
}

func action(ctx context.Context, client *status.Client, guildID, name string) {
	if *token == "" {
		fmt.Println("Error: admin token is required (use --token or STATUS_TOKEN env)")
		os.Exit(1)
	}

	res, err := client.Action(ctx, guildID, name)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if res.Success {
		fmt.Printf("Player %s: %s\n", guildID, res.Message)
	} else {
		fmt.Printf("Failed: %s\n", res.Message)
	}
}
