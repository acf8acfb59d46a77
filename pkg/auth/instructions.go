package auth

import (
	"fmt"
	"strings"
)

// ShowCookieExportGuide displays step-by-step instructions for exporting
// browser cookies in the format yt-dlp expects
func ShowCookieExportGuide() {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("🍪 BROWSER COOKIE EXPORT GUIDE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()

	fmt.Println("Some sites only serve media to logged-in sessions. Exporting your")
	fmt.Println("browser cookies lets downloads run with your session attached.")
	fmt.Println()

	fmt.Println("🌐 STEP 1: Log in to the site in your browser")
	fmt.Println("   - Open the site you want to download from")
	fmt.Println("   - Log in and confirm the content is visible")
	fmt.Println()

	fmt.Println("📦 STEP 2: Install a cookies.txt exporter extension")
	fmt.Println("   • Chrome/Edge/Brave: 'Get cookies.txt LOCALLY'")
	fmt.Println("   • Firefox: 'cookies.txt'")
	fmt.Println()

	fmt.Println("💾 STEP 3: Export the cookies")
	fmt.Println("   - With the site open, click the extension icon")
	fmt.Println("   - Export in Netscape format (the default)")
	fmt.Println("   - Save the file somewhere temporary")
	fmt.Println()

	fmt.Println("🔐 STEP 4: Import the file")
	fmt.Println("   - Run: grabbot auth login --file /path/to/cookies.txt")
	fmt.Println("   - The file is stored encrypted, delete the export afterwards")
	fmt.Println()

	fmt.Println("⚠️  SECURITY WARNING:")
	fmt.Println("   • Exported cookies give FULL access to your account on that site")
	fmt.Println("   • NEVER share them with anyone")
	fmt.Println("   • Cookies expire, so re-export when downloads start failing")
	fmt.Println()
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()
}

// ShowQuickExportGuide shows a condensed version for experienced users
func ShowQuickExportGuide() {
	fmt.Println("\n🍪 Quick Guide: log in → cookies.txt exporter extension → export (Netscape format)")
	fmt.Println("   Then: grabbot auth login --file /path/to/cookies.txt")
	fmt.Println("   Type 'help' for detailed instructions")
}
