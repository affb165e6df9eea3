package caps

// BaseConstraints returns the constraint table every mobile automation
// driver starts from. Drivers extend it with their own keys.
func BaseConstraints() Constraints {
	return Constraints{
		{Name: "platformName", Constraint: Constraint{
			Presence: true,
			IsString: true,
			InclusionCaseInsensitive: []any{
				"iOS", "Android", "Windows", "Mac", "Linux", "Fuchsia", "Tizen",
			},
		}},
		{Name: "deviceName", Constraint: Constraint{Presence: true, IsString: true}},
		{Name: "platformVersion", Constraint: Constraint{IsString: true}},
		{Name: "newCommandTimeout", Constraint: Constraint{IsNumber: true}},
		{Name: "automationName", Constraint: Constraint{IsString: true}},
		{Name: "autoLaunch", Constraint: Constraint{IsBoolean: true}},
		{Name: "udid", Constraint: Constraint{IsString: true}},
		{Name: "orientation", Constraint: Constraint{Inclusion: []any{"LANDSCAPE", "PORTRAIT"}}},
		{Name: "autoWebview", Constraint: Constraint{IsBoolean: true}},
		{Name: "noReset", Constraint: Constraint{IsBoolean: true}},
		{Name: "fullReset", Constraint: Constraint{IsBoolean: true}},
		{Name: "language", Constraint: Constraint{IsString: true}},
		{Name: "locale", Constraint: Constraint{IsString: true}},
		{Name: "eventTimings", Constraint: Constraint{IsBoolean: true}},
		{Name: "printPageSourceOnFindFailure", Constraint: Constraint{IsBoolean: true}},
		{Name: "app", Constraint: Constraint{IsString: true}},
		{Name: "browserName", Constraint: Constraint{IsString: true}},
	}
}
