// Command meridian is the fraud-operations rule platform CLI.
//
// Usage:
//
//	meridian run                        Start the HTTP API server
//	meridian lint --dir definitions/    Validate ruleset and dictionary files
//	meridian evaluate --file txn.json   Evaluate a transaction locally
//	meridian audit query                Query the audit trail
//	meridian audit verify               Verify the audit hash chain
//	meridian version                    Print version information
package main

func main() {
	Execute()
}
