package logger

import (
	"fmt"
	"os"
	"time"
)

// ANSI color codes. Disabled when NO_COLOR is set.
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

func useColor() bool {
	return os.Getenv("NO_COLOR") == ""
}

func paint(color, s string) string {
	if !useColor() {
		return s
	}
	return color + s + colorReset
}

func stamp() string {
	return time.Now().Format("15:04:05")
}

func line(level, color, tag, msg string) {
	fmt.Printf("%s %s %s %s\n",
		paint(colorGray, stamp()),
		paint(color, level),
		paint(colorCyan, "["+tag+"]"),
		msg,
	)
}

// Info logs an informational message with a component tag.
func Info(tag, msg string) {
	line("INFO", colorCyan, tag, msg)
}

// Success logs a success message with a component tag.
func Success(tag, msg string) {
	line(" OK ", colorGreen, tag, msg)
}

// Warn logs a warning message with a component tag.
func Warn(tag, msg string) {
	line("WARN", colorYellow, tag, msg)
}

// Error logs an error message with a component tag.
func Error(tag, msg string) {
	line("FAIL", colorRed, tag, msg)
}

// Banner prints the startup banner with the build version.
func Banner(version string) {
	if version == "" {
		version = "dev"
	}
	fmt.Println(paint(colorCyan, `
   ___        __    _ __                    _   __          ____
  / _ | ____ / /   (_) /________ ____ ____ | | / /__ ___ __/ / /_
 / __ |/ __// _ \ / / __/ __/ _ '/ _ '/ -_)| |/ / _ '/ // / / __/
/_/ |_/_/  /_.__//_/\__/_/  \_,_/\_, /\__/ |___/\_,_/\_,_/_/\__/
                                /___/`))
	fmt.Printf("%s %s\n\n", paint(colorGray, "ArbitrageVault"), paint(colorGreen, version))
}

// Server prints the listen address once the HTTP server is up.
func Server(addr string) {
	fmt.Printf("\n%s %s\n\n", paint(colorGreen, "Listening on"), paint(colorCyan, "http://"+addr))
}

// Section prints a visual separator with a title.
func Section(title string) {
	fmt.Printf("\n%s %s\n", paint(colorGray, "────"), paint(colorCyan, title))
}

// Stats prints a single key/value statistic, aligned for scanning.
func Stats(key string, value interface{}) {
	fmt.Printf("  %-24s %v\n", paint(colorGray, key), value)
}
