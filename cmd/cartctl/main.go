// cartctl is a CLI tool for driving a running cartd.
// Each command performs a single operation, making it composable for scripts.
//
// Commands:
//
//	cartctl get
//	cartctl add -product ID [-qty N] [-size S] [-color C] [-price P]
//	cartctl remove -id <cart-item-id>
//	cartctl update -id <cart-item-id> -qty N
//	cartctl clear
//	cartctl sync
//	cartctl login -user ID [-token T]
//	cartctl logout
//
// Examples:
//
//	ID=$(cartctl add -server http://localhost:8080 -product P1 -size M -q)
//	cartctl update -id $ID -qty 3
//	cartctl login -user U42 -token "$TOKEN"
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

var client = &http.Client{Timeout: 30 * time.Second}

// Global flags (apply to all commands)
var (
	serverURL string
	quiet     bool
	noColor   bool
	verbose   bool
)

// ANSI color codes
var (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

func init() {
	if os.Getenv("NO_COLOR") != "" {
		disableColors()
	}
}

func disableColors() {
	colorReset, colorRed, colorGreen, colorYellow = "", "", "", ""
	colorCyan, colorGray, colorBold = "", "", ""
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "get":
		runGet(args)
	case "add":
		runAdd(args)
	case "remove":
		runRemove(args)
	case "update":
		runUpdate(args)
	case "clear":
		runClear(args)
	case "sync":
		runSync(args)
	case "login":
		runLogin(args)
	case "logout":
		runLogout(args)
	case "-h", "-help", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `cartctl - Leaf Shop cart tool

Usage:
  cartctl <command> [options]

Commands:
  get       Show the local cart
  add       Add a product to the cart
  remove    Remove a cart line
  update    Change the quantity of a cart line
  clear     Empty the local cart (after checkout)
  sync      Pull the server cart
  login     Attach a user and resync
  logout    Detach the user and resync

Examples:
  # Add a product and capture the line ID
  ID=$(cartctl add -server http://localhost:8080 -product P1 -size M -q)

  # Change its quantity
  cartctl update -id "$ID" -qty 3

  # Log in and merge the server cart
  cartctl login -user U42 -token "$TOKEN"

Run 'cartctl <command> -h' for command-specific options.
`)
}

// newFlagSet registers the flags shared by every command.
func newFlagSet(name, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.StringVar(&serverURL, "server", "http://localhost:8080", "cartd base URL")
	fs.BoolVar(&quiet, "q", false, "Quiet mode - only output the essential value")
	fs.BoolVar(&noColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&verbose, "v", false, "Verbose - show full request/response")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: cartctl %s\n\nOptions:\n", usage)
		fs.PrintDefaults()
	}
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) {
	fs.Parse(args)
	if noColor {
		disableColors()
	}
}

// =============================================================================
// CART COMMANDS
// =============================================================================

func runGet(args []string) {
	fs := newFlagSet("get", "get [options]")
	parseFlags(fs, args)

	resp, err := doRequest("GET", "/cart", nil)
	if err != nil {
		fatal("Failed to get cart: %v", err)
	}

	if quiet {
		fmt.Println(countOf(resp))
		return
	}
	printSuccess("Cart retrieved")
	printCart(resp)
}

func runAdd(args []string) {
	fs := newFlagSet("add", "add -product ID [options]")
	var productID, variantID, size, color string
	var quantity int
	var price float64
	fs.StringVar(&productID, "product", "", "Product ID (required)")
	fs.StringVar(&variantID, "variant", "", "Variant ID")
	fs.IntVar(&quantity, "qty", 1, "Quantity")
	fs.StringVar(&size, "size", "", "Selected size")
	fs.StringVar(&color, "color", "", "Selected color")
	fs.Float64Var(&price, "price", 0, "Unit price used if the shop is unreachable")
	parseFlags(fs, args)

	if productID == "" {
		fs.Usage()
		os.Exit(1)
	}

	reqBody := map[string]interface{}{
		"productId": productID,
		"quantity":  quantity,
	}
	if variantID != "" {
		reqBody["variantId"] = variantID
	}
	if size != "" {
		reqBody["size"] = size
	}
	if color != "" {
		reqBody["color"] = color
	}
	if price > 0 {
		reqBody["unitPrice"] = price
	}

	resp, err := doRequest("POST", "/cart/items", reqBody)
	if err != nil {
		fatal("Failed to add item: %v", err)
	}

	if quiet {
		fmt.Println(findLineID(cartOf(resp), productID, size, color))
		return
	}
	printMutation("Item added", resp)
}

func runRemove(args []string) {
	fs := newFlagSet("remove", "remove -id <cart-item-id> [options]")
	var cartItemID string
	fs.StringVar(&cartItemID, "id", "", "Cart item ID (required)")
	parseFlags(fs, args)

	if cartItemID == "" {
		fs.Usage()
		os.Exit(1)
	}

	resp, err := doRequest("DELETE", "/cart/items/"+url.PathEscape(cartItemID), nil)
	if err != nil {
		fatal("Failed to remove item: %v", err)
	}

	if quiet {
		fmt.Println(countOf(cartOf(resp)))
		return
	}
	printMutation("Item removed", resp)
}

func runUpdate(args []string) {
	fs := newFlagSet("update", "update -id <cart-item-id> -qty N [options]")
	var cartItemID string
	var quantity int
	fs.StringVar(&cartItemID, "id", "", "Cart item ID (required)")
	fs.IntVar(&quantity, "qty", 0, "New quantity, at least 1 (required)")
	parseFlags(fs, args)

	if cartItemID == "" || quantity < 1 {
		fs.Usage()
		os.Exit(1)
	}

	resp, err := doRequest("PUT", "/cart/items/"+url.PathEscape(cartItemID),
		map[string]interface{}{"quantity": quantity})
	if err != nil {
		fatal("Failed to update quantity: %v", err)
	}

	if quiet {
		fmt.Println(countOf(cartOf(resp)))
		return
	}
	printMutation("Quantity updated", resp)
}

func runClear(args []string) {
	fs := newFlagSet("clear", "clear [options]")
	parseFlags(fs, args)

	resp, err := doRequest("POST", "/cart/clear", nil)
	if err != nil {
		fatal("Failed to clear cart: %v", err)
	}

	if quiet {
		fmt.Println(countOf(resp))
		return
	}
	printSuccess("Local cart cleared")
	printCart(resp)
}

func runSync(args []string) {
	fs := newFlagSet("sync", "sync [options]")
	parseFlags(fs, args)

	resp, err := doRequest("POST", "/cart/sync", nil)
	if err != nil {
		fatal("Failed to sync cart: %v", err)
	}
	printSync("Cart synced", resp)
}

// =============================================================================
// SESSION COMMANDS
// =============================================================================

func runLogin(args []string) {
	fs := newFlagSet("login", "login -user ID [-token T] [options]")
	var userID, token string
	fs.StringVar(&userID, "user", "", "User ID (required)")
	fs.StringVar(&token, "token", "", "Bearer token for the shop API")
	parseFlags(fs, args)

	if userID == "" {
		fs.Usage()
		os.Exit(1)
	}

	reqBody := map[string]interface{}{"userId": userID}
	if token != "" {
		reqBody["token"] = token
	}

	resp, err := doRequest("POST", "/session/login", reqBody)
	if err != nil {
		fatal("Failed to log in: %v", err)
	}
	printSync("Logged in as "+userID, resp)
}

func runLogout(args []string) {
	fs := newFlagSet("logout", "logout [options]")
	parseFlags(fs, args)

	resp, err := doRequest("POST", "/session/logout", nil)
	if err != nil {
		fatal("Failed to log out: %v", err)
	}
	printSync("Logged out", resp)
}

// =============================================================================
// HTTP HELPERS
// =============================================================================

func doRequest(method, path string, body interface{}) (map[string]interface{}, error) {
	var reqBody io.Reader
	var reqJSON []byte

	if body != nil {
		var err error
		reqJSON, err = json.MarshalIndent(body, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reqBody = bytes.NewReader(reqJSON)
	}

	req, err := http.NewRequest(method, strings.TrimRight(serverURL, "/")+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if !quiet {
		printRequest(method, path, reqJSON)
	}

	start := time.Now()
	resp, err := client.Do(req)
	duration := time.Since(start)

	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if !quiet {
		printResponse(resp.StatusCode, respBody, duration)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, errorMessage(respBody))
	}

	var result map[string]interface{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	return result, nil
}

// errorMessage extracts "CODE: message" from a cartd error body.
func errorMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Error.Code == "" {
		return strings.TrimSpace(string(body))
	}
	return envelope.Error.Code + ": " + envelope.Error.Message
}

// =============================================================================
// RESPONSE ACCESSORS
// =============================================================================

func cartOf(resp map[string]interface{}) map[string]interface{} {
	c, _ := resp["cart"].(map[string]interface{})
	return c
}

func countOf(c map[string]interface{}) int {
	n, _ := c["count"].(float64)
	return int(n)
}

func itemsOf(c map[string]interface{}) []map[string]interface{} {
	raw, _ := c["items"].([]interface{})
	items := make([]map[string]interface{}, 0, len(raw))
	for _, it := range raw {
		if m, ok := it.(map[string]interface{}); ok {
			items = append(items, m)
		}
	}
	return items
}

// findLineID returns the cart item ID of the line matching the added product.
func findLineID(c map[string]interface{}, productID, size, color string) string {
	for _, it := range itemsOf(c) {
		pid, _ := it["productId"].(string)
		s, _ := it["selectedSize"].(string)
		col, _ := it["selectedColor"].(string)
		if pid == productID && s == size && col == color {
			id, _ := it["cartItemId"].(string)
			return id
		}
	}
	return ""
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

func printMutation(title string, resp map[string]interface{}) {
	source, _ := resp["source"].(string)
	switch source {
	case "server":
		printSuccess("%s", title)
	case "local":
		reason, _ := resp["reason"].(string)
		printWarning("%s locally (shop unreachable: %s)", title, reason)
	default:
		printInfo("Nothing changed")
	}
	printCart(cartOf(resp))
}

func printSync(title string, resp map[string]interface{}) {
	replaced, _ := resp["replaced"].(bool)
	reason, _ := resp["reason"].(string)

	if quiet {
		fmt.Println(replaced)
		return
	}

	switch {
	case replaced:
		printSuccess("%s, server cart applied", title)
	case reason != "":
		printWarning("%s, kept local cart (%s)", title, reason)
	default:
		printSuccess("%s, server cart empty, kept local cart", title)
	}
	printCart(cartOf(resp))
}

func printCart(c map[string]interface{}) {
	if c == nil {
		return
	}
	if identity, ok := c["identity"].(map[string]interface{}); ok {
		session, _ := identity["sessionId"].(string)
		user, _ := identity["userId"].(string)
		if user != "" {
			fmt.Printf("  User: %s%s%s\n", colorCyan, user, colorReset)
		}
		fmt.Printf("  Session: %s%s%s\n", colorGray, session, colorReset)
	}

	items := itemsOf(c)
	if len(items) == 0 {
		fmt.Printf("  %s(empty)%s\n", colorGray, colorReset)
	}
	for _, it := range items {
		name, _ := it["displayName"].(string)
		if name == "" {
			name, _ = it["productId"].(string)
		}
		var variant []string
		for _, key := range []string{"selectedSize", "selectedColor"} {
			if v, _ := it[key].(string); v != "" {
				variant = append(variant, v)
			}
		}
		suffix := ""
		if len(variant) > 0 {
			suffix = " (" + strings.Join(variant, ", ") + ")"
		}
		fmt.Printf("    - %s%s%s%s x%v @ %s  %s[%s]%s\n",
			colorBold, name, colorReset, suffix, it["quantity"], formatPrice(it["unitPrice"]),
			colorGray, it["cartItemId"], colorReset)
	}

	fmt.Printf("  Items: %d  Total: %s%s%s\n", countOf(c), colorGreen, formatPrice(c["total"]), colorReset)
}

func printRequest(method, path string, body []byte) {
	if !verbose {
		return
	}
	fmt.Printf("\n%s▶ REQUEST%s %s%s %s%s\n", colorYellow, colorReset, colorBold, method, path, colorReset)
	if body != nil {
		printJSON(body, "  ")
	}
}

func printResponse(status int, body []byte, duration time.Duration) {
	if !verbose {
		return
	}
	statusColor := colorGreen
	if status >= 400 {
		statusColor = colorRed
	}
	fmt.Printf("\n%s◀ RESPONSE%s %s%d%s (%v)\n", colorCyan, colorReset, statusColor, status, colorReset, duration)
	printJSON(body, "  ")
}

func printJSON(data []byte, prefix string) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, prefix, "  "); err != nil {
		fmt.Printf("%s%s\n", prefix, string(data))
		return
	}
	fmt.Println(pretty.String())
}

func printSuccess(format string, args ...interface{}) {
	if !quiet {
		fmt.Printf("%s✓ %s%s\n", colorGreen, fmt.Sprintf(format, args...), colorReset)
	}
}

func printWarning(format string, args ...interface{}) {
	fmt.Printf("%s⚠ %s%s\n", colorYellow, fmt.Sprintf(format, args...), colorReset)
}

func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Printf("%s→ %s%s\n", colorGray, fmt.Sprintf(format, args...), colorReset)
	}
}

// formatPrice renders a price in whole units with thousands separators.
func formatPrice(v interface{}) string {
	f, ok := v.(float64)
	if !ok {
		return fmt.Sprintf("%v", v)
	}
	s := fmt.Sprintf("%.0f", f)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s✗ %s%s\n", colorRed, fmt.Sprintf(format, args...), colorReset)
	os.Exit(1)
}
