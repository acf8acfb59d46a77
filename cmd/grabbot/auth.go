package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"grabbot/pkg/auth"
)

var (
	// Auth command flags
	loginFile string
	logoutAll bool
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored browser cookies",
	Long: `Manage browser cookies used for downloads from private sources.

Cookie jars are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read only)

Never share your cookie exports or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [name]",
	Short: "Store a cookies.txt export securely",
	Long: `Store a Netscape cookies.txt export in the system keychain or
encrypted file.

Export cookies from a logged-in browser session with a cookies.txt
extension, then pass the file with --file. The optional name argument
labels the jar; it defaults to 'default'.`,
	Example: `  # Store a cookie export under the default name
  grabbot auth login --file ~/Downloads/cookies.txt

  # Store a second jar under its own name
  grabbot auth login instagram --file ~/Downloads/instagram-cookies.txt`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [name]",
	Short: "Remove stored cookies",
	Long: `Remove a stored cookie jar.

If no name is provided the default jar is removed. Use --all to remove
every stored jar.`,
	Example: `  # Remove the default jar
  grabbot auth logout

  # Remove a named jar
  grabbot auth logout instagram

  # Remove everything
  grabbot auth logout --all`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored cookie jars",
	Long:  `List all stored cookie jars with sanitized contents.`,
	Run:   runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)

	loginCmd.Flags().StringVarP(&loginFile, "file", "f", "", "path to a Netscape cookies.txt export")
	logoutCmd.Flags().BoolVar(&logoutAll, "all", false, "remove all stored jars")
}

func runLogin(cmd *cobra.Command, args []string) {
	if loginFile == "" {
		auth.ShowCookieExportGuide()
		os.Exit(1)
	}

	manager, err := auth.NewManager()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize credential manager:", err)
		os.Exit(1)
	}

	name := "default"
	if len(args) > 0 {
		name = strings.TrimSpace(args[0])
	}
	if name == "" {
		fmt.Fprintln(os.Stderr, "Jar name cannot be blank")
		os.Exit(1)
	}

	data, err := os.ReadFile(loginFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to read cookie file:", err)
		os.Exit(1)
	}

	// Confirm before overwriting an existing jar
	if existing, _ := manager.Retrieve(name); existing != nil {
		fmt.Printf("Jar '%s' already exists. Overwrite? (y/N): ", name)
		reader := bufio.NewReader(os.Stdin)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
	}

	jar := &auth.CookieJar{
		Name:         name,
		Data:         string(data),
		LastModified: time.Now(),
	}
	if err := manager.Store(jar); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to store cookies:", err)
		os.Exit(1)
	}

	fmt.Printf("Stored cookie jar '%s' (%d bytes)\n", name, len(data))
	fmt.Println("\nDownloads from private sources will now use these cookies.")
}

func runLogout(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize credential manager:", err)
		os.Exit(1)
	}

	if logoutAll {
		fmt.Print("Remove ALL stored cookie jars? (y/N): ")
		reader := bufio.NewReader(os.Stdin)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
		if err := manager.DeleteAll(); err != nil {
			fmt.Fprintln(os.Stderr, "Failed to remove jars:", err)
			os.Exit(1)
		}
		fmt.Println("All cookie jars removed")
		return
	}

	name := "default"
	if len(args) > 0 {
		name = strings.TrimSpace(args[0])
	}

	if err := manager.Delete(name); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to remove jar '%s': %v\n", name, err)
		os.Exit(1)
	}
	fmt.Printf("Removed cookie jar '%s'\n", name)
}

func runList(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize credential manager:", err)
		os.Exit(1)
	}

	jars, err := manager.List()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to list jars:", err)
		os.Exit(1)
	}

	if len(jars) == 0 {
		fmt.Println("No cookie jars stored")
		fmt.Println("\nTo store one, run:")
		fmt.Println("  grabbot auth login --file /path/to/cookies.txt")
		return
	}

	fmt.Printf("Stored cookie jars (%d):\n\n", len(jars))
	for _, jar := range jars {
		sanitized := auth.SanitizeJar(jar)
		fmt.Printf("  %s\n", sanitized.Name)
		fmt.Printf("    Contents: %s\n", sanitized.Data)
		fmt.Printf("    Updated:  %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
	}
}
