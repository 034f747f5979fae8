package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowAPIKeyGuide explains how to obtain a Flickr API key
func ShowAPIKeyGuide(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "FLICKR API KEY GUIDE")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "flico reads public Flickr Commons metadata and needs an API key.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 1: Sign in to Flickr")
	fmt.Fprintln(w, "   - Go to https://www.flickr.com/services/apps/create/")
	fmt.Fprintln(w, "   - Sign in with any Flickr account")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 2: Request a key")
	fmt.Fprintln(w, "   - Choose 'Apply for a Non-Commercial Key'")
	fmt.Fprintln(w, "   - Describe the app (for example: metadata research crawler)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 3: Copy the pair")
	fmt.Fprintln(w, "   ┌────────┬──────────────────────────────────────────┐")
	fmt.Fprintln(w, "   │ Key    │ 32 hex characters, required               │")
	fmt.Fprintln(w, "   │ Secret │ 16 hex characters, optional (signs calls) │")
	fmt.Fprintln(w, "   └────────┴──────────────────────────────────────────┘")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "TIPS:")
	fmt.Fprintln(w, "   • A key allows about 3600 calls per hour")
	fmt.Fprintln(w, "   • FLICKR_API_KEY in the environment works without storing anything")
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 72))
}

// ShowQuickKeyGuide shows a condensed version for experienced users
func ShowQuickKeyGuide(w io.Writer) {
	fmt.Fprintln(w, "\nQuick guide: https://www.flickr.com/services/apps/create/ → Non-Commercial Key → copy Key and Secret")
	fmt.Fprintln(w, "   Type 'help' for detailed instructions")
}
