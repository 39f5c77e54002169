package version

var Version = "0.1.0"

// Authors is a list of {name, email} pairs shown by the cli tools.
var Authors = [][2]string{}
