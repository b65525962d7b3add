package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"
)

var profileMode = map[string]func(*profile.Profile){
	"block":     profile.BlockProfile,
	"cpu":       profile.CPUProfile,
	"clock":     profile.ClockProfile,
	"goroutine": profile.GoroutineProfile,
	"mem":       profile.MemProfile,
	"allocs":    profile.MemProfileAllocs,
	"heap":      profile.MemProfileHeap,
	"mutex":     profile.MutexProfile,
	"thread":    profile.ThreadcreationProfile,
	"trace":     profile.TraceProfile,
}

func profileModes() []string {
	modes := make([]string, 0, len(profileMode))
	for m := range profileMode {
		modes = append(modes, m)
	}
	sort.Strings(modes)
	return modes
}

type noProfile struct{}

func (noProfile) Stop() {}

// startProfile starts the profile named by --profile, writing it to the
// working directory. An unknown name is reported and ignored.
func startProfile(cmd *cobra.Command) interface{ Stop() } {
	mode, _ := cmd.Flags().GetString("profile")
	if mode == "" {
		mode = os.Getenv("URIEL_PROFILE")
	}
	if mode == "" {
		return noProfile{}
	}
	fn, ok := profileMode[mode]
	if !ok {
		fmt.Fprintf(cmd.ErrOrStderr(), "unknown profile %q, want one of %v\n", mode, profileModes())
		return noProfile{}
	}
	return profile.Start(fn, profile.ProfilePath("."), profile.Quiet, profile.NoShutdownHook)
}
