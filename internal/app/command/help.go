package command

// Spec describes a command for the help table.
type Spec struct {
	Usage       string
	Description string
}

// Specs is the help table in display order.
var Specs = []Spec{
	{Usage: "play <query>", Description: "Play a song or playlist"},
	{Usage: "pause", Description: "Pause the current track"},
	{Usage: "resume", Description: "Resume the current track"},
	{Usage: "skip", Description: "Skip the current track"},
	{Usage: "stop", Description: "Stop playback and clear queue"},
	{Usage: "queue", Description: "Show the current queue"},
	{Usage: "nowplaying", Description: "Show current track info"},
	{Usage: "volume <0-100>", Description: "Adjust player volume"},
	{Usage: "shuffle", Description: "Shuffle the current queue"},
	{Usage: "loop", Description: "Toggle queue loop mode"},
	{Usage: "remove <position>", Description: "Remove a track from queue"},
	{Usage: "clear", Description: "Clear the current queue"},
	{Usage: "status", Description: "Show player status"},
	{Usage: "help", Description: "Show this help message"},
}
