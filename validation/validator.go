// Copyright (c) 2023 The KBase Project and its Contributors
// Copyright (c) 2023 Cohere Consulting, LLC
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies
// of the Software, and to permit persons to whom the Software is furnished to do
// so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package validation

import (
	"log/slog"
	"path/filepath"

	"github.com/OpenSpending-Clone/os-cli/frictionless"
)

// the overall outcome of a validation run
type Verdict int

const (
	Pass Verdict = iota
	Fail
)

func (v Verdict) String() string {
	if v == Pass {
		return "PASS"
	}
	return "FAIL"
}

// the stage a validation run reached
type Stage string

const (
	// only the descriptor was checked
	DescriptorStage Stage = "package"
	// the descriptor and the data files were both checked
	DataStage Stage = "data"
)

// the verdict and report of a single validation run
type Result struct {
	Verdict Verdict
	// the last stage that ran
	Stage  Stage
	Report Report
	// the parsed descriptor (nil if the descriptor was malformed)
	Package *frictionless.DataPackage
}

func (r *Result) Passed() bool {
	return r.Verdict == Pass
}

// checks a data package descriptor (see CheckDescriptor)
type DescriptorChecker interface {
	CheckDescriptor(path string) (bool, *frictionless.DataPackage, []Issue, error)
}

// checks the data files of a checked descriptor (see CheckData)
type DataChecker interface {
	CheckData(pkg *frictionless.DataPackage, dataRoot string) (bool, []Issue)
}

// adapts an ordinary function to the DescriptorChecker interface
type DescriptorCheckerFunc func(path string) (bool, *frictionless.DataPackage, []Issue, error)

func (f DescriptorCheckerFunc) CheckDescriptor(path string) (bool, *frictionless.DataPackage, []Issue, error) {
	return f(path)
}

// adapts an ordinary function to the DataChecker interface
type DataCheckerFunc func(pkg *frictionless.DataPackage, dataRoot string) (bool, []Issue)

func (f DataCheckerFunc) CheckData(pkg *frictionless.DataPackage, dataRoot string) (bool, []Issue) {
	return f(pkg, dataRoot)
}

// A Validator runs the descriptor check and then, only if the descriptor is
// valid, the data check, producing a verdict and a report. A Validator holds
// no state between runs and may be used concurrently.
type Validator struct {
	descriptors DescriptorChecker
	data        DataChecker
}

// configures a Validator
type Option func(*Validator)

// replaces the descriptor checker used by a Validator
func WithDescriptorChecker(checker DescriptorChecker) Option {
	return func(v *Validator) {
		v.descriptors = checker
	}
}

// replaces the data checker used by a Validator
func WithDataChecker(checker DataChecker) Option {
	return func(v *Validator) {
		v.data = checker
	}
}

// creates a Validator using CheckDescriptor and CheckData unless told
// otherwise
func New(opts ...Option) *Validator {
	v := &Validator{
		descriptors: DescriptorCheckerFunc(CheckDescriptor),
		data:        DataCheckerFunc(CheckData),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validates the data package at the given path (a package directory or a
// descriptor file). An error is returned only if no descriptor can be read;
// every other problem appears in the result's report.
func (v *Validator) Validate(path string) (*Result, error) {
	descriptorPath, err := ResolveDescriptor(path)
	if err != nil {
		return nil, err
	}
	ok, pkg, issues, err := v.descriptors.CheckDescriptor(descriptorPath)
	if err != nil {
		return nil, err
	}
	if !ok {
		return v.conclude(descriptorPath, DescriptorStage, pkg, issues), nil
	}
	_, dataIssues := v.data.CheckData(pkg, filepath.Dir(descriptorPath))
	issues = append(issues, dataIssues...)
	return v.conclude(descriptorPath, DataStage, pkg, issues), nil
}

// Checks only the descriptor of the data package at the given path.
func (v *Validator) ValidateDescriptor(path string) (*Result, error) {
	descriptorPath, err := ResolveDescriptor(path)
	if err != nil {
		return nil, err
	}
	_, pkg, issues, err := v.descriptors.CheckDescriptor(descriptorPath)
	if err != nil {
		return nil, err
	}
	return v.conclude(descriptorPath, DescriptorStage, pkg, issues), nil
}

func (v *Validator) conclude(descriptorPath string, stage Stage, pkg *frictionless.DataPackage,
	issues []Issue) *Result {
	result := &Result{
		Verdict: Pass,
		Stage:   stage,
		Report:  NewReport(issues),
		Package: pkg,
	}
	if !result.Report.OK {
		result.Verdict = Fail
	}
	slog.Debug("validated data package",
		"descriptor", descriptorPath,
		"stage", string(stage),
		"verdict", result.Verdict.String(),
		"issues", len(issues))
	return result
}

// validates the data package at the given path with the default checkers
func Validate(path string) (*Result, error) {
	return New().Validate(path)
}
