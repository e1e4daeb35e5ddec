// SPDX-FileCopyrightText: 2026 The fjage-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
)

// listAgents for the "agents" CLI option.
func listAgents(args []string) {
	if len(args) != 1 {
		printUsage()
	}

	gw := openGateway(args[0])
	defer func() { _ = gw.Close() }()

	ctx := context.Background()

	agents, err := gw.Agents(ctx)
	if err != nil {
		printFatal(err, "Listing agents errored", gw)
	}
	for _, aid := range agents {
		fmt.Println(aid.Name())
	}

	services, err := gw.Services(ctx)
	if err != nil {
		printFatal(err, "Listing services errored", gw)
	}
	if len(services) > 0 {
		fmt.Println()
	}
	for _, service := range services {
		fmt.Println(service)
	}
}

// getParams for the "get" CLI option.
func getParams(args []string) {
	if len(args) < 2 {
		printUsage()
	}

	gw := openGateway(args[0])
	defer func() { _ = gw.Close() }()

	agent := gw.Agent(args[1])
	params := args[2:]
	ctx := context.Background()

	if len(params) == 0 {
		all, err := agent.GetAll(ctx)
		if err != nil {
			printFatal(err, "Requesting parameters errored", gw)
		}

		names := make([]string, 0, len(all))
		for name := range all {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			fmt.Printf("%s = %v\n", name, all[name])
		}
		return
	}

	values, err := agent.GetMany(ctx, params)
	if err != nil {
		printFatal(err, "Requesting parameters errored", gw)
	}
	for i, param := range params {
		fmt.Printf("%s = %v\n", param, values[i])
	}
}

// parseValue of the command line as a number or boolean, falling back to a
// string.
func parseValue(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// setParam for the "set" CLI option.
func setParam(args []string) {
	if len(args) != 4 {
		printUsage()
	}

	gw := openGateway(args[0])
	defer func() { _ = gw.Close() }()

	param := args[2]
	v, err := gw.Agent(args[1]).Set(context.Background(), param, parseValue(args[3]))
	if err != nil {
		printFatal(err, "Setting parameter errored", gw)
	}
	fmt.Printf("%s = %v\n", param, v)
}
