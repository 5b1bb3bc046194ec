/*
Package chat contains the core logic of the client.

This file implements the deterministic room-to-server shard selection: a
fixed special-case table plus a weighted hash distribution over the server
bucket list. Same room name, same server, always; the tables are immutable
after process start.
*/
package chat

import (
	"fmt"
	"strconv"
	"strings"
)

// serverSpecials pins certain high-traffic rooms to fixed servers.
var serverSpecials = map[string]int{
	"mitvcanal":         56,
	"animeultimacom":    34,
	"cricket365live":    21,
	"pokemonepisodeorg": 22,
	"animelinkz":        20,
	"sport24lt":         56,
	"narutowire":        10,
	"watchanimeonn":     22,
	"cricvid-hitcric-":  51,
	"narutochatt":       70,
	"leeplarp":          27,
	"stream2watch3":     56,
	"ttvsports":         56,
	"ver-anime":         8,
	"vipstand":          21,
	"eafangames":        56,
	"soccerjumbo":       21,
	"myfoxdfw":          67,
	"kiiiikiii":         21,
	"de-livechat":       5,
	"rgsmotrisport":     51,
	"dbzepisodeorg":     10,
	"watch-dragonball":  8,
	"peliculas-flv":     69,
	"tvanimefreak":      54,
	"tvtvanimefreak":    54,
}

type serverWeight struct {
	server int
	weight int
}

// serverWeights is the ordered bucket list the hash walks. Order matters:
// the first bucket whose cumulative normalized weight reaches the hash
// ratio wins.
var serverWeights = []serverWeight{
	{5, 75}, {6, 75}, {7, 75}, {8, 75}, {16, 75}, {17, 75}, {18, 75},
	{9, 95}, {11, 95}, {12, 95}, {13, 95}, {14, 95}, {15, 95},
	{19, 110}, {23, 110}, {24, 110}, {25, 110}, {26, 110},
	{28, 104}, {29, 104}, {30, 104}, {31, 104}, {32, 104}, {33, 104},
	{35, 101}, {36, 101}, {37, 101}, {38, 101}, {39, 101}, {40, 101},
	{41, 101}, {42, 101}, {43, 101}, {44, 101}, {45, 101}, {46, 101},
	{47, 101}, {48, 101}, {49, 101}, {50, 101},
	{52, 110}, {53, 110}, {55, 110}, {57, 110}, {58, 110}, {59, 110},
	{60, 110}, {61, 110}, {62, 110}, {63, 110}, {64, 110}, {65, 110},
	{66, 110},
	{68, 95},
	{71, 116}, {72, 116}, {73, 116}, {74, 116}, {75, 116}, {76, 116},
	{77, 116}, {78, 116}, {79, 116}, {80, 116}, {81, 116}, {82, 116},
	{83, 116}, {84, 116},
}

// SelectServer maps a room name to its server number. Special-cased names
// return their fixed value regardless of casing; everything else goes
// through the weighted base-36 hash.
func SelectServer(roomName string) int {
	name := strings.ToLower(roomName)
	if server, ok := serverSpecials[name]; ok {
		return server
	}

	// Underscores and dashes are not base-36 digits; the filler keeps
	// the hash defined for every legal room name.
	name = strings.ReplaceAll(name, "_", "q")
	name = strings.ReplaceAll(name, "-", "q")

	head := name[:min(5, len(name))]
	base36, _ := strconv.ParseInt(head, 36, 64)

	r7 := int64(1000)
	if len(name) > 6 {
		end := min(6+min(3, len(name)-5), len(name))
		if v, err := strconv.ParseInt(name[6:end], 36, 64); err == nil && v > 1000 {
			r7 = v
		}
	}

	total := 0
	for _, w := range serverWeights {
		total += w.weight
	}

	ratio := float64(base36%r7) / float64(r7)
	cumulative := 0.0
	for _, w := range serverWeights {
		cumulative += float64(w.weight) / float64(total)
		if ratio <= cumulative {
			return w.server
		}
	}

	return serverWeights[len(serverWeights)-1].server
}

// ServerAddr returns the hostname of the server a room lives on.
func ServerAddr(roomName string) string {
	return fmt.Sprintf("s%d.chatango.com", SelectServer(roomName))
}
