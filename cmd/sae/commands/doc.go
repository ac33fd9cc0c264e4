// Package commands defines the sae CLI.
//
// Commands
//
//   - host          Listen, print an invite URI and chat with the first peer that redeems it
//   - connect URI   Join a host using its invite URI
//   - config init   Write the default configuration file
//   - version       Print the build version
//
// Every run generates a fresh identity; nothing is written to disk except an
// explicitly requested config file.
package commands
