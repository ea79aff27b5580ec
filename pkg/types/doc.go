// Package types defines the wire types shared by metage-server and the metage
// CLI: the estimate request accepted by every transport and the JSON
// responses the server returns.
package types
